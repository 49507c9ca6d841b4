// Package presentation decides which overlays sit in front of the game iframe: the
// rotate-your-device overlay, the fullscreen or add-to-home-screen prompt, and the
// in-app browser warning
package presentation

import (
	"sync"
	"time"

	"github.com/tiny-little/royale-web/internal/clock"
	"github.com/tiny-little/royale-web/internal/device"
)

const (
	// AutoFullscreenDelay lets the freshly loaded game settle before fullscreen is
	// requested on its behalf
	AutoFullscreenDelay = 300 * time.Millisecond

	// InAppWarningDelay lets the visitor see the game before the warning covers it
	InAppWarningDelay = 1000 * time.Millisecond
)

// State is the set of overlays to render
type State struct {
	ShowPortraitOverlay     bool   `json:"showPortraitOverlay"`
	ShowInAppBrowserWarning bool   `json:"showInAppBrowserWarning"`
	ShowFullscreenPrompt    bool   `json:"showFullscreenPrompt"`
	ShowHomeScreenPrompt    bool   `json:"showHomeScreenPrompt"`
	ShowLoadingOverlay      bool   `json:"showLoadingOverlay"`
	IframeVisible           bool   `json:"iframeVisible"`
	BrowserName             string `json:"browserName,omitempty"`
}

// Hooks are the side effects the controller triggers. Both are optional.
type Hooks struct {
	// RequestFullscreen asks the platform to enter fullscreen; the outcome is reported
	// back through FullscreenResult
	RequestFullscreen func()
	// OnChange is called with the new State whenever a timer changes it
	OnChange func(State)
}

// Controller derives presentation State from the device's capabilities and the
// events that arrive after the page is shown
type Controller struct {
	snapshot device.Snapshot
	clk      clock.Clock
	hooks    Hooks

	mu               sync.Mutex
	loaded           bool
	portrait         bool
	fullscreen       bool
	promptWanted     bool
	autoAttempted    bool
	warningDue       bool
	warningDismissed bool
	timers           []clock.Timer
	closed           bool
}

func NewController(snapshot device.Snapshot, clk clock.Clock, hooks Hooks) *Controller {
	return &Controller{
		snapshot:   snapshot,
		clk:        clk,
		hooks:      hooks,
		portrait:   snapshot.IsPortrait,
		fullscreen: snapshot.IsFullscreenActive,
	}
}

// State returns the current presentation state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// IframeLoaded records that the game reported a successful load. Only the first call
// has any effect.
func (c *Controller) IframeLoaded() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.loaded {
		return c.stateLocked()
	}
	c.loaded = true

	if c.snapshot.IsMobile && !c.snapshot.IsIOS && !c.fullscreen && !c.autoAttempted {
		c.autoAttempted = true
		c.schedule(AutoFullscreenDelay, func() {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed && c.hooks.RequestFullscreen != nil {
				c.hooks.RequestFullscreen()
			}
		})
	}
	if c.needsHomeScreen() {
		c.promptWanted = true
	}
	if c.snapshot.IsInAppBrowser && !c.warningDismissed {
		c.schedule(InAppWarningDelay, func() {
			c.mu.Lock()
			if c.closed || c.warningDismissed {
				c.mu.Unlock()
				return
			}
			c.warningDue = true
			state := c.stateLocked()
			c.mu.Unlock()
			c.notify(state)
		})
	}
	return c.stateLocked()
}

// FullscreenResult reports the outcome of a RequestFullscreen effect
func (c *Controller) FullscreenResult(ok bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok {
		c.fullscreen = true
		c.promptWanted = false
	} else if c.snapshot.IsMobile {
		c.promptWanted = true
	}
	return c.stateLocked()
}

// FullscreenChanged reports a fullscreen change the controller didn't initiate, such
// as the user or the OS leaving fullscreen
func (c *Controller) FullscreenChanged(active bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fullscreen = active
	if active {
		c.promptWanted = false
	} else if c.snapshot.IsMobile {
		c.promptWanted = true
	}
	return c.stateLocked()
}

// OrientationChanged reports a settled orientation, see device.OrientationWatcher
func (c *Controller) OrientationChanged(portrait bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.portrait = portrait
	return c.stateLocked()
}

// ContinueInPortrait hides the portrait overlay until the next orientation change
func (c *Controller) ContinueInPortrait() State {
	return c.OrientationChanged(false)
}

// DismissInAppWarning hides the in-app browser warning for good
func (c *Controller) DismissInAppWarning() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warningDismissed = true
	c.warningDue = false
	return c.stateLocked()
}

func (c *Controller) DismissFullscreenPrompt() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptWanted = false
	return c.stateLocked()
}

// Close stops every pending timer. Events received afterwards still update State but
// no timer fires.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

func (c *Controller) needsHomeScreen() bool {
	return c.snapshot.IsIOS && !c.snapshot.IsStandalone
}

func (c *Controller) schedule(d time.Duration, f func()) {
	c.timers = append(c.timers, c.clk.AfterFunc(d, f))
}

func (c *Controller) notify(state State) {
	if c.hooks.OnChange != nil {
		c.hooks.OnChange(state)
	}
}

func (c *Controller) stateLocked() State {
	state := State{
		ShowPortraitOverlay: c.portrait,
		ShowLoadingOverlay:  !c.loaded && !c.portrait,
		IframeVisible:       c.loaded && !c.portrait,
	}
	if c.snapshot.IsInAppBrowser {
		state.BrowserName = c.snapshot.BrowserName
	}
	// The portrait overlay covers everything else
	if !state.IframeVisible {
		return state
	}
	state.ShowInAppBrowserWarning = c.warningDue && !c.warningDismissed
	if c.promptWanted && !c.fullscreen {
		if c.needsHomeScreen() {
			state.ShowHomeScreenPrompt = true
		} else if !c.snapshot.IsIOS {
			state.ShowFullscreenPrompt = true
		}
	}
	return state
}
