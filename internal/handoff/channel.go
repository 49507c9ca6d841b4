package handoff

import (
	"net/url"
	"sync"
)

// MessageSignup is posted by the game when the player asks to create an account
const MessageSignup = "signup"

// Channel routes messages posted by the embedded game to the handlers registered for
// them. Messages are matched by exact string; anything unrecognized is ignored.
type Channel struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]func()
}

func NewChannel() *Channel {
	return &Channel{handlers: make(map[string]map[int]func())}
}

// Register adds a handler for message and returns a func that removes it again.
// Calling the release func more than once is harmless.
func (c *Channel) Register(message string, handler func()) (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	if c.handlers[message] == nil {
		c.handlers[message] = make(map[int]func())
	}
	c.handlers[message][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.handlers[message], id)
			if len(c.handlers[message]) == 0 {
				delete(c.handlers, message)
			}
		})
	}
}

// Dispatch runs every handler registered for message, reporting whether there were
// any
func (c *Channel) Dispatch(message string) bool {
	c.mu.Lock()
	handlers := make([]func(), 0, len(c.handlers[message]))
	for _, h := range c.handlers[message] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h()
	}
	return len(handlers) > 0
}

// SignupRedirect returns where to send a player who asked to sign up from inside the
// game. A referral code in the host page's URL fragment is carried forward.
func SignupRedirect(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Fragment == "" {
		return "/"
	}
	params, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return "/"
	}
	if code := params.Get("referral"); code != "" {
		return "/#referral=" + url.QueryEscape(code)
	}
	return "/"
}
