package device

import (
	"sync"
	"time"

	"github.com/tiny-little/royale-web/internal/clock"
)

// OrientationDebounce absorbs the burst of resize events a mobile browser emits while
// its chrome (address bar, toolbars) animates in or out
const OrientationDebounce = 100 * time.Millisecond

// OrientationWatcher re-evaluates portrait/landscape after resize and
// orientation-change notifications have settled, and reports changes to onChange
type OrientationWatcher struct {
	clk      clock.Clock
	delay    time.Duration
	onChange func(portrait bool)

	mu      sync.Mutex
	timer   clock.Timer
	pending Environment
	known   bool
	last    bool
	stopped bool
}

func NewOrientationWatcher(clk clock.Clock, onChange func(portrait bool)) *OrientationWatcher {
	return &OrientationWatcher{
		clk:      clk,
		delay:    OrientationDebounce,
		onChange: onChange,
	}
}

// Observe records the latest environment and (re)starts the debounce window
func (w *OrientationWatcher) Observe(env Environment) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.pending = env
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clk.AfterFunc(w.delay, w.settle)
}

func (w *OrientationWatcher) settle() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	portrait := IsPortrait(w.pending)
	changed := !w.known || portrait != w.last
	w.known = true
	w.last = portrait
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(portrait)
	}
}

// Stop cancels any pending evaluation and ignores further notifications
func (w *OrientationWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
