package sse

import "sync"

// bus keeps track of a channel for each HTTP client connection that needs to be
// notified when a new value is published
type bus[T any] struct {
	chs map[chan T]struct{}
	mu  sync.RWMutex
}

func newBus[T any]() bus[T] {
	return bus[T]{chs: make(map[chan T]struct{})}
}

// register adds a channel that will be notified of newly published values
func (b *bus[T]) register(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chs[ch] = struct{}{}
}

// unregister removes a previously-registered channel, if such a channel is registered
func (b *bus[T]) unregister(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.chs, ch)
}

// size returns the number of registered channels
func (b *bus[T]) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.chs)
}

// publish fans value out to all currently-registered channels. A client that has
// fallen too far behind to accept the value misses it; since every value is a full
// state, the next one brings it up to date.
func (b *bus[T]) publish(value T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.chs {
		select {
		case ch <- value:
		default:
		}
	}
}
