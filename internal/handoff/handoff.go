// Package handoff hands a resolved session over to the embedded game: it builds the
// iframe URL, watches for the game to finish loading, and dispatches the messages the
// game posts back to the host page
package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tiny-little/royale-web/internal/clock"
)

// LoadTimeout is how long the game gets to report that it has loaded
const LoadTimeout = 30 * time.Second

// ErrLoadTimeout is reported when the game never signalled a successful load. It's
// distinct from a session resolution failure: the remedy is to reload the page or go
// home, not to retry the session.
var ErrLoadTimeout = errors.New("game failed to load")

// Launch is everything the game needs to start
type Launch struct {
	UserID         string
	Token          string
	ViewportWidth  int
	ViewportHeight int
	Branch         string
}

// GameURL returns base with the launch parameters appended as
// ?user=..&login-token=..&vw=..&vh=..[&branch=develop]
func GameURL(base string, launch Launch) string {
	var b strings.Builder
	b.WriteString(base)
	if strings.Contains(base, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	fmt.Fprintf(&b, "user=%s&login-token=%s&vw=%d&vh=%d",
		url.QueryEscape(launch.UserID),
		url.QueryEscape(launch.Token),
		launch.ViewportWidth,
		launch.ViewportHeight,
	)
	if launch.Branch == "develop" {
		b.WriteString("&branch=develop")
	}
	return b.String()
}

// LoadWatchdog reports ErrLoadTimeout through onTimeout unless Loaded is called
// within the timeout. At most one outcome is ever reported.
type LoadWatchdog struct {
	mu        sync.Mutex
	timer     clock.Timer
	done      bool
	err       error
	onTimeout func(error)
}

func NewLoadWatchdog(clk clock.Clock, timeout time.Duration, onTimeout func(error)) *LoadWatchdog {
	w := &LoadWatchdog{onTimeout: onTimeout}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timer = clk.AfterFunc(timeout, w.expire)
	return w
}

func (w *LoadWatchdog) expire() {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.done = true
	w.err = ErrLoadTimeout
	w.mu.Unlock()

	if w.onTimeout != nil {
		w.onTimeout(ErrLoadTimeout)
	}
}

// Loaded records a successful load. It returns ErrLoadTimeout if the deadline had
// already passed.
func (w *LoadWatchdog) Loaded() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return w.err
	}
	w.done = true
	w.timer.Stop()
	return nil
}

// Err returns ErrLoadTimeout once the deadline has passed without a load
func (w *LoadWatchdog) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Stop abandons the watchdog without reporting anything
func (w *LoadWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	w.timer.Stop()
}
