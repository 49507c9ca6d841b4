// Package store persists the client-held artifacts of a play session: the account
// bearer credential and profile, the guest identity, and the short-lived game token.
package store

import (
	"errors"
	"time"
)

// Keys under which session artifacts are persisted. The names match the cookie and
// local-storage keys the game client and the rest of the site already expect.
const (
	KeyAccountToken = "jwt_token"
	KeyUserData     = "user_data"
	KeyGameToken    = "token"
	KeyUserID       = "userId"
	KeyUsername     = "username"
)

const (
	GameTokenTTL     = 5 * time.Minute
	GuestIdentityTTL = 365 * 24 * time.Hour
	AccountTTL       = 30 * 24 * time.Hour
)

var ErrInvalidKey = errors.New("store key must not be empty")

// Entry is a single value to be written, along with the time at which it should stop
// being readable. A zero Expires value means the entry lives as long as the
// underlying medium allows (e.g. a browser session cookie).
type Entry struct {
	Key     string
	Value   string
	Expires time.Time
}

// Store is a durable key/value store with expiry semantics. Save must apply all of
// the given entries or none of them, so that callers can persist related values
// (e.g. token + userId + username) without ever exposing a partial write.
type Store interface {
	Get(key string) (string, bool)
	Save(entries ...Entry) error
	Delete(keys ...string) error
}

func validateEntries(entries []Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return ErrInvalidKey
		}
	}
	return nil
}

func validateKeys(keys []string) error {
	for _, key := range keys {
		if key == "" {
			return ErrInvalidKey
		}
	}
	return nil
}
