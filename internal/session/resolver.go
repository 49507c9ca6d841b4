// Package session decides who a visitor is before the game is shown: a signed-in
// member, a returning guest or a new guest. It exchanges that identity for a
// short-lived game token exactly once per page and persists the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tiny-little/royale-web/internal/backend"
	"github.com/tiny-little/royale-web/internal/clock"
	"github.com/tiny-little/royale-web/internal/logging"
	"github.com/tiny-little/royale-web/internal/store"
)

// ErrInProgress is returned when a resolution is requested while another one is still
// waiting on the backend
var ErrInProgress = errors.New("session resolution already in progress")

// ErrUpstreamPending is returned when the account credential or the OAuth session has
// not settled yet, so the identity flow can't be chosen
var ErrUpstreamPending = errors.New("identity sources have not settled")

// ErrClosed is returned once the resolver has been torn down
var ErrClosed = errors.New("session resolver is closed")

// ErrNotFailed is returned by Retry when there is no failed resolution to retry
var ErrNotFailed = errors.New("only a failed session resolution can be retried")

// promotionTimeout bounds the guest promotion call, which outlives the request that
// triggered it
const promotionTimeout = 15 * time.Second

// Backend is the subset of the backend API used to issue game tokens
type Backend interface {
	GameToken(ctx context.Context, gameID string, accountToken string) (store.Credentials, error)
	GuestToken(ctx context.Context, gameID string) (store.Credentials, error)
	RefreshGuestToken(ctx context.Context, gameID string, userID string, username string) (store.Credentials, error)
	PromoteGuest(ctx context.Context, userID string, accountToken string) error
}

// Attempt describes a finished resolution attempt
type Attempt struct {
	Mode     Mode
	UserID   string
	FellBack bool
	Err      error
	At       time.Time
}

// Recorder is notified of every finished resolution attempt
type Recorder interface {
	RecordResolution(ctx context.Context, attempt Attempt) error
}

// View is what the presentation layer renders from
type View struct {
	State    State  `json:"-"`
	Token    string `json:"token,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Loading  bool   `json:"loading"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

type Options struct {
	Logger   *zap.Logger
	Recorder Recorder
	Clock    clock.Clock
}

// Resolver runs the session resolution state machine for a single page
type Resolver struct {
	gameID   string
	backend  Backend
	store    store.Store
	logger   *zap.Logger
	recorder Recorder
	clk      clock.Clock

	mu         sync.Mutex
	state      State
	creds      store.Credentials
	err        error
	fellBack   bool
	authFailed bool
	closed     bool

	promotions sync.WaitGroup
}

func NewResolver(gameID string, b Backend, st store.Store, opts Options) *Resolver {
	r := &Resolver{
		gameID:   gameID,
		backend:  b,
		store:    st,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		clk:      opts.Clock,
	}
	if r.clk == nil {
		r.clk = clock.Real{}
	}
	return r
}

// Resolve starts the resolution once upstream has settled and blocks until it
// finishes. Once the resolver has reached a terminal state, Resolve returns that
// result without contacting the backend again.
func (r *Resolver) Resolve(ctx context.Context, up Upstream) (View, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return View{}, ErrClosed
	}
	switch r.state {
	case Resolving:
		r.mu.Unlock()
		return View{}, ErrInProgress
	case Resolved, Failed:
		view := r.viewLocked()
		r.mu.Unlock()
		return view, nil
	}
	if !up.Settled() {
		r.mu.Unlock()
		return View{}, ErrUpstreamPending
	}
	r.setStateLocked(Resolving)
	r.mu.Unlock()

	return r.run(ctx, up)
}

// Retry re-runs a failed resolution. It's the only way back into Resolving.
func (r *Resolver) Retry(ctx context.Context, up Upstream) (View, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return View{}, ErrClosed
	}
	switch r.state {
	case Resolving:
		r.mu.Unlock()
		return View{}, ErrInProgress
	case Failed:
	default:
		r.mu.Unlock()
		return View{}, ErrNotFailed
	}
	if !up.Settled() {
		r.mu.Unlock()
		return View{}, ErrUpstreamPending
	}
	r.err = nil
	r.setStateLocked(Resolving)
	r.mu.Unlock()

	return r.run(ctx, up)
}

// View returns the current state of the resolver
func (r *Resolver) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

// AuthFailed reports whether the account credential was rejected during this
// resolver's lifetime
func (r *Resolver) AuthFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authFailed
}

// Close tears the resolver down. A backend response arriving afterwards is
// discarded without touching the store.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Wait blocks until any guest promotion started by this resolver has finished
func (r *Resolver) Wait() {
	r.promotions.Wait()
}

func (r *Resolver) run(ctx context.Context, up Upstream) (View, error) {
	logger := r.loggerFor(ctx)

	mode := r.chooseMode(up)
	logger.Info("Resolving game session",
		zap.String("mode", string(mode)),
		zap.String("game_id", r.gameID),
		zap.String("account_token", logging.Redact(up.AccountToken)),
	)

	creds, err := r.issue(ctx, mode, up.AccountToken)
	fellBack := false
	if mode == ModeAuthenticated && errors.Is(err, backend.ErrUnauthorized) {
		if !r.isOpen() {
			return View{}, ErrClosed
		}
		logger.Warn("Account credential rejected; clearing it and continuing as a new guest", zap.Error(err))
		if clearErr := store.ClearAccount(r.store); clearErr != nil {
			logger.Error("Failed to clear stale account credential", zap.Error(clearErr))
		}
		r.mu.Lock()
		r.authFailed = true
		r.mu.Unlock()

		fellBack = true
		mode = ModeGuestNew
		creds, err = r.issue(ctx, ModeGuestNew, "")
	}
	if err == nil && !creds.Complete() {
		err = fmt.Errorf("%w: %w", backend.ErrMalformedResponse, store.ErrIncompleteCredentials)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return View{}, ErrClosed
	}
	if err == nil {
		err = store.SaveSession(r.store, creds, r.clk.Now())
	}
	r.fellBack = fellBack
	if err != nil {
		r.err = err
		r.setStateLocked(Failed)
	} else {
		r.creds = creds
		r.setStateLocked(Resolved)
	}
	view := r.viewLocked()
	r.mu.Unlock()

	if err != nil {
		logger.Error("Failed to resolve game session", zap.String("mode", string(mode)), zap.Error(err))
	} else {
		logger.Info("Resolved game session", zap.String("mode", string(mode)), zap.String("user_id", creds.UserID))
		if mode == ModeAuthenticated && IsGuestName(creds.Username) {
			r.promote(ctx, creds.UserID, up.AccountToken)
		}
	}
	r.record(ctx, Attempt{Mode: mode, UserID: creds.UserID, FellBack: fellBack, Err: err, At: r.clk.Now()})
	return view, nil
}

func (r *Resolver) chooseMode(up Upstream) Mode {
	r.mu.Lock()
	authFailed := r.authFailed
	r.mu.Unlock()

	if up.HasAccount() && !authFailed {
		return ModeAuthenticated
	}
	if _, ok := store.LoadGuest(r.store); ok {
		return ModeGuestResume
	}
	return ModeGuestNew
}

func (r *Resolver) issue(ctx context.Context, mode Mode, accountToken string) (store.Credentials, error) {
	switch mode {
	case ModeAuthenticated:
		return r.backend.GameToken(ctx, r.gameID, accountToken)
	case ModeGuestResume:
		guest, _ := store.LoadGuest(r.store)
		return r.backend.RefreshGuestToken(ctx, r.gameID, guest.UserID, guest.Username)
	default:
		return r.backend.GuestToken(ctx, r.gameID)
	}
}

// promote converts a member's guest-named account in the background. The member
// already holds a usable game token, so a failure is only logged.
func (r *Resolver) promote(ctx context.Context, userID string, accountToken string) {
	logger := r.loggerFor(ctx)
	logger.Info("Member has a guest username; promoting guest account", zap.String("user_id", userID))

	r.promotions.Add(1)
	go func() {
		defer r.promotions.Done()
		promoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), promotionTimeout)
		defer cancel()
		if err := r.backend.PromoteGuest(promoteCtx, userID, accountToken); err != nil {
			logger.Warn("Failed to promote guest account", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

func (r *Resolver) record(ctx context.Context, attempt Attempt) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordResolution(ctx, attempt); err != nil {
		r.loggerFor(ctx).Warn("Failed to record session resolution", zap.Error(err))
	}
}

func (r *Resolver) isOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

func (r *Resolver) loggerFor(ctx context.Context) *zap.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.From(ctx)
}

func (r *Resolver) setStateLocked(next State) {
	if !canTransition(r.state, next) {
		panic(fmt.Sprintf("illegal session state transition: %s -> %s", r.state, next))
	}
	r.state = next
}

func (r *Resolver) viewLocked() View {
	view := View{State: r.state}
	switch r.state {
	case Idle, Resolving:
		view.Loading = true
	case Resolved:
		view.Token = r.creds.Token
		view.UserID = r.creds.UserID
		view.Username = r.creds.Username
	case Failed:
		view.Err = r.err
		view.Error = errorMessage(r.err, r.fellBack)
	}
	return view
}

func errorMessage(err error, fellBack bool) string {
	if fellBack {
		return "Failed to initialize game session. Please try again."
	}
	return fmt.Sprintf("Failed to initialize game session: %v. Please try again.", err)
}
