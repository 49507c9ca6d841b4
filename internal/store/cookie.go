package store

import (
	"net/http"
	"net/url"
	"sync"
)

// CookieJar is a request-scoped Store backed by HTTP cookies. The incoming request's
// cookies are read exactly once, when the jar is constructed; writes are emitted as
// Set-Cookie headers on the response and are immediately visible to later reads
// through the same jar.
type CookieJar struct {
	res    http.ResponseWriter
	secure bool

	mu     sync.Mutex
	values map[string]string
}

// httpOnlyKeys are never exposed to scripts running in the page
var httpOnlyKeys = map[string]bool{
	KeyAccountToken: true,
	KeyUserData:     true,
}

// NewCookieJar snapshots the cookies on req. If secure is set, every cookie written
// by the jar carries the Secure attribute.
func NewCookieJar(res http.ResponseWriter, req *http.Request, secure bool) *CookieJar {
	values := make(map[string]string)
	for _, c := range req.Cookies() {
		value, err := url.QueryUnescape(c.Value)
		if err != nil {
			value = c.Value
		}
		values[c.Name] = value
	}
	return &CookieJar{
		res:    res,
		secure: secure,
		values: values,
	}
}

func (j *CookieJar) Get(key string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	value, ok := j.values[key]
	return value, ok
}

func (j *CookieJar) Save(entries ...Entry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range entries {
		j.values[e.Key] = e.Value
		http.SetCookie(j.res, &http.Cookie{
			Name:     e.Key,
			Value:    url.QueryEscape(e.Value),
			Path:     "/",
			Expires:  e.Expires,
			HttpOnly: httpOnlyKeys[e.Key],
			Secure:   j.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return nil
}

func (j *CookieJar) Delete(keys ...string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, key := range keys {
		delete(j.values, key)
		http.SetCookie(j.res, &http.Cookie{
			Name:     key,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: httpOnlyKeys[key],
			Secure:   j.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return nil
}

var _ Store = (*CookieJar)(nil)
