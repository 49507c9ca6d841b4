package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tiny-little/royale-web/internal/device"
	"github.com/tiny-little/royale-web/internal/handoff"
	"github.com/tiny-little/royale-web/internal/presentation"
	"github.com/tiny-little/royale-web/internal/session"
	"github.com/tiny-little/royale-web/internal/sse"
	"github.com/tiny-little/royale-web/internal/store"
)

var errStoreUnbound = errors.New("play page store is not bound to a request")

// play is the server-side state of one /playgame page view: the session resolver
// that runs once for it, and the presentation state driven by the events the page
// reports back
type play struct {
	id  string
	env device.Environment

	st          *boundStore
	resolver    *session.Resolver
	controller  *presentation.Controller
	orientation *device.OrientationWatcher
	channel     *handoff.Channel
	release     func()
	stream      *sse.Stream[playState]

	// resolving is held for as long as the resolver is bound to a request's cookies
	resolving sync.Mutex

	mu                  sync.Mutex
	lastSeen            time.Time
	watchdog            *handoff.LoadWatchdog
	loadErr             error
	fullscreenRequested bool
	pageURL             string
	redirect            string
}

// playState is what the play page is streamed, polls for, and gets back from events
type playState struct {
	Session           session.View       `json:"session"`
	Presentation      presentation.State `json:"presentation"`
	RequestFullscreen bool               `json:"requestFullscreen,omitempty"`
	LoadError         string             `json:"loadError,omitempty"`
	Redirect          string             `json:"redirect,omitempty"`
}

// snapshot returns the current state. A fullscreen request stays pending until the
// page reports how it went.
func (p *play) snapshot() playState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := playState{
		Session:           p.resolver.View(),
		Presentation:      p.controller.State(),
		RequestFullscreen: p.fullscreenRequested,
		Redirect:          p.redirect,
	}
	if p.loadErr != nil {
		state.LoadError = p.loadErr.Error()
	}
	return state
}

// publish pushes the current state to the page's open event streams
func (p *play) publish() {
	p.stream.Publish(p.snapshot())
}

// startWatchdog begins the load deadline the first time the game iframe is served
func (p *play) startWatchdog(start func(onTimeout func(error)) *handoff.LoadWatchdog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchdog != nil {
		return
	}
	p.watchdog = start(func(err error) {
		p.mu.Lock()
		p.loadErr = err
		p.mu.Unlock()
		p.publish()
	})
}

// iframeLoaded records that the game finished loading. A load reported after the
// deadline has passed doesn't count.
func (p *play) iframeLoaded() error {
	p.mu.Lock()
	watchdog := p.watchdog
	p.mu.Unlock()
	if watchdog != nil {
		if err := watchdog.Loaded(); err != nil {
			return err
		}
	}
	p.controller.IframeLoaded()
	return nil
}

func (p *play) requestFullscreen() {
	p.mu.Lock()
	p.fullscreenRequested = true
	p.mu.Unlock()
	p.publish()
}

func (p *play) fullscreenSettled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fullscreenRequested = false
}

func (p *play) setPageURL(pageURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageURL = pageURL
}

func (p *play) signup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redirect = handoff.SignupRedirect(p.pageURL)
}

func (p *play) loadError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

func (p *play) touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = now
}

func (p *play) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

func (p *play) close() {
	p.resolver.Close()
	p.controller.Close()
	p.orientation.Stop()
	p.release()
	p.stream.Close()
	p.mu.Lock()
	watchdog := p.watchdog
	p.mu.Unlock()
	if watchdog != nil {
		watchdog.Stop()
	}
}

type playRegistry struct {
	mu    sync.Mutex
	now   func() time.Time
	plays map[string]*play
}

func newPlayRegistry(now func() time.Time) *playRegistry {
	return &playRegistry{
		now:   now,
		plays: make(map[string]*play),
	}
}

func (r *playRegistry) add(p *play) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.lastSeen = r.now()
	r.plays[p.id] = p
}

// get returns the play with the given id, marking it as recently used
func (r *playRegistry) get(id string) (*play, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	r.mu.Lock()
	p, ok := r.plays[id]
	r.mu.Unlock()
	if ok {
		p.touch(r.now())
	}
	return p, ok
}

func (r *playRegistry) sweep(maxIdle time.Duration) int {
	now := r.now()
	var expired []*play
	r.mu.Lock()
	for id, p := range r.plays {
		if now.Sub(p.idleSince()) > maxIdle {
			expired = append(expired, p)
			delete(r.plays, id)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		p.close()
	}
	return len(expired)
}

func (r *playRegistry) closeAll() {
	r.mu.Lock()
	plays := r.plays
	r.plays = make(map[string]*play)
	r.mu.Unlock()

	for _, p := range plays {
		p.close()
	}
}

// boundStore lets a resolver that outlives any single request read and write the
// cookies of whichever request is currently driving it
type boundStore struct {
	mu sync.Mutex
	st store.Store
}

func (b *boundStore) bind(st store.Store) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = st
}

func (b *boundStore) current() store.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

func (b *boundStore) Get(key string) (string, bool) {
	st := b.current()
	if st == nil {
		return "", false
	}
	return st.Get(key)
}

func (b *boundStore) Save(entries ...store.Entry) error {
	st := b.current()
	if st == nil {
		return errStoreUnbound
	}
	return st.Save(entries...)
}

func (b *boundStore) Delete(keys ...string) error {
	st := b.current()
	if st == nil {
		return errStoreUnbound
	}
	return st.Delete(keys...)
}
