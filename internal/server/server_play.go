package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tiny-little/royale-web/internal/device"
	"github.com/tiny-little/royale-web/internal/handoff"
	"github.com/tiny-little/royale-web/internal/logging"
	"github.com/tiny-little/royale-web/internal/presentation"
	"github.com/tiny-little/royale-web/internal/session"
	"github.com/tiny-little/royale-web/internal/sse"
	"github.com/tiny-little/royale-web/internal/store"
)

const maxEventBodySize = 4 << 10

// resolveTimeout covers the longest resolution: a rejected account token followed by
// a new guest, each bounded by the backend client's own timeout
const resolveTimeout = 30 * time.Second

// handlePlayGame serves the play page. The first request for a page view only carries
// the user agent, so it's answered with a bootstrap page that reloads with the
// viewport appended; that second request creates the play and resolves its session.
// Later requests naming the play by id re-render whatever state it has reached.
func (s *Server) handlePlayGame(res http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	var p *play
	if id := q.Get("page"); id != "" {
		existing, ok := s.plays.get(id)
		if !ok {
			http.Redirect(res, req, "/playgame", http.StatusSeeOther)
			return
		}
		p = existing
	} else {
		if q.Get("vw") == "" {
			s.render(res, req, http.StatusOK, templ.FromGoHTML(bootstrapTemplate, bootstrapData{Path: req.URL.Path}))
			return
		}
		p = s.newPlay(device.FromRequest(req))
		logging.From(req.Context()).Info("Created play page", zap.String("page", p.id))
	}

	if err := p.loadError(); err != nil {
		s.render(res, req, http.StatusOK, templ.FromGoHTML(loadTimeoutTemplate, loadTimeoutData{ReloadURL: "/playgame"}))
		return
	}

	view, err := s.resolve(res, req, p, p.resolver.Resolve)
	if err != nil {
		s.renderResolveError(res, req, p, err)
		return
	}
	s.renderView(res, req, p, view)
}

// handleRetrySession re-runs a failed resolution. Form submissions from the error
// page are redirected back to the play page; API callers get the session view.
func (s *Server) handleRetrySession(res http.ResponseWriter, req *http.Request) {
	p, ok := s.plays.get(req.URL.Query().Get("page"))
	if !ok {
		http.Error(res, "no such play page", http.StatusNotFound)
		return
	}

	view, err := s.resolve(res, req, p, p.resolver.Retry)
	wantsJSON := strings.Contains(req.Header.Get("Accept"), "application/json")
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrNotFailed), errors.Is(err, session.ErrInProgress):
			status = http.StatusConflict
		case errors.Is(err, session.ErrUpstreamPending):
			status = http.StatusServiceUnavailable
		case errors.Is(err, session.ErrClosed):
			status = http.StatusGone
		}
		if !wantsJSON && status != http.StatusGone {
			http.Redirect(res, req, playURL(p.id), http.StatusSeeOther)
			return
		}
		http.Error(res, err.Error(), status)
		return
	}
	if !wantsJSON {
		http.Redirect(res, req, playURL(p.id), http.StatusSeeOther)
		return
	}
	writeJSON(res, http.StatusOK, view)
}

func (s *Server) handleGetSession(res http.ResponseWriter, req *http.Request) {
	p, ok := s.plays.get(req.URL.Query().Get("page"))
	if !ok {
		http.Error(res, "no such play page", http.StatusNotFound)
		return
	}
	writeJSON(res, http.StatusOK, p.resolver.View())
}

func (s *Server) handleGetDevice(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, device.Detect(device.FromRequest(req)))
}

func (s *Server) handleGetPlay(res http.ResponseWriter, req *http.Request) {
	p, ok := s.plays.get(mux.Vars(req)["id"])
	if !ok {
		http.Error(res, "no such play page", http.StatusNotFound)
		return
	}
	writeJSON(res, http.StatusOK, p.snapshot())
}

// playEvent is something that happened on the play page
type playEvent struct {
	Event   string `json:"event"`
	Active  bool   `json:"active"`
	OK      bool   `json:"ok"`
	VW      int    `json:"vw"`
	VH      int    `json:"vh"`
	Message string `json:"message"`
	PageURL string `json:"pageUrl"`
}

// handleStreamPlay pushes the play's state to the page whenever a timer changes it
func (s *Server) handleStreamPlay(res http.ResponseWriter, req *http.Request) {
	p, ok := s.plays.get(mux.Vars(req)["id"])
	if !ok {
		http.Error(res, "no such play page", http.StatusNotFound)
		return
	}
	p.stream.ServeHTTP(res, req)
}

func (s *Server) handlePostPlayEvent(res http.ResponseWriter, req *http.Request) {
	p, ok := s.plays.get(mux.Vars(req)["id"])
	if !ok {
		http.Error(res, "no such play page", http.StatusNotFound)
		return
	}

	var ev playEvent
	if err := json.NewDecoder(io.LimitReader(req.Body, maxEventBodySize)).Decode(&ev); err != nil {
		http.Error(res, "request body must be JSON", http.StatusBadRequest)
		return
	}

	switch ev.Event {
	case "iframe-loaded":
		if err := p.iframeLoaded(); err != nil {
			logging.From(req.Context()).Warn("Game reported load after deadline", zap.String("page", p.id))
		}
	case "fullscreen-result":
		p.fullscreenSettled()
		p.controller.FullscreenResult(ev.OK)
	case "fullscreen-changed":
		if ev.Active {
			p.fullscreenSettled()
		}
		p.controller.FullscreenChanged(ev.Active)
	case "resize":
		env := p.env
		env.ViewportWidth = ev.VW
		env.ViewportHeight = ev.VH
		p.orientation.Observe(env)
	case "continue-portrait":
		p.controller.ContinueInPortrait()
	case "dismiss-in-app-warning":
		p.controller.DismissInAppWarning()
	case "dismiss-fullscreen-prompt":
		p.controller.DismissFullscreenPrompt()
	case "message":
		p.setPageURL(ev.PageURL)
		p.channel.Dispatch(ev.Message)
	default:
		http.Error(res, fmt.Sprintf("unknown event '%s'", ev.Event), http.StatusBadRequest)
		return
	}
	writeJSON(res, http.StatusOK, p.snapshot())
}

func (s *Server) newPlay(env device.Environment) *play {
	p := &play{
		id:      uuid.NewString(),
		env:     env,
		st:      &boundStore{},
		channel: handoff.NewChannel(),
	}
	p.resolver = session.NewResolver(s.cfg.GameID, s.backend, p.st, session.Options{
		Recorder: s.recorder,
		Clock:    s.clk,
	})
	p.stream = sse.NewStream(p.snapshot)
	p.controller = presentation.NewController(device.Detect(env), s.clk, presentation.Hooks{
		RequestFullscreen: p.requestFullscreen,
		OnChange:          func(presentation.State) { p.publish() },
	})
	p.orientation = device.NewOrientationWatcher(s.clk, func(portrait bool) {
		p.controller.OrientationChanged(portrait)
		p.publish()
	})
	p.release = p.channel.Register(handoff.MessageSignup, p.signup)
	s.plays.add(p)
	return p
}

// resolve binds the request's cookies to the play for the duration of f. A request
// arriving while another is resolving the same play is told so without touching the
// resolver.
func (s *Server) resolve(res http.ResponseWriter, req *http.Request, p *play, f func(ctx context.Context, up session.Upstream) (session.View, error)) (session.View, error) {
	if !p.resolving.TryLock() {
		return session.View{}, session.ErrInProgress
	}
	defer p.resolving.Unlock()

	jar := store.NewCookieJar(res, req, s.cfg.Production)
	p.st.bind(jar)
	defer p.st.bind(nil)

	// The browser going away doesn't cancel a resolution; only resolveTimeout bounds it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), resolveTimeout)
	defer cancel()
	return f(ctx, s.upstream(ctx, req, jar))
}

func (s *Server) renderResolveError(res http.ResponseWriter, req *http.Request, p *play, err error) {
	switch {
	case errors.Is(err, session.ErrUpstreamPending):
		s.render(res, req, http.StatusOK, templ.FromGoHTML(loadingTemplate, loadingData{
			RefreshURL: playURL(p.id),
			Message:    "Signing you in...",
		}))
	case errors.Is(err, session.ErrInProgress):
		s.render(res, req, http.StatusOK, templ.FromGoHTML(loadingTemplate, loadingData{
			RefreshURL: playURL(p.id),
			Message:    "Loading game...",
		}))
	case errors.Is(err, session.ErrClosed):
		http.Redirect(res, req, "/playgame", http.StatusSeeOther)
	default:
		logging.From(req.Context()).Error("Failed to resolve game session", zap.String("page", p.id), zap.Error(err))
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) renderView(res http.ResponseWriter, req *http.Request, p *play, view session.View) {
	if view.State == session.Failed {
		s.render(res, req, http.StatusOK, templ.FromGoHTML(initErrorTemplate, initErrorData{
			Message:  view.Error,
			RetryURL: "/api/session/retry?page=" + url.QueryEscape(p.id),
		}))
		return
	}

	p.startWatchdog(func(onTimeout func(error)) *handoff.LoadWatchdog {
		return handoff.NewLoadWatchdog(s.clk, handoff.LoadTimeout, onTimeout)
	})
	gameURL := handoff.GameURL(s.cfg.GameURL, handoff.Launch{
		UserID:         view.UserID,
		Token:          view.Token,
		ViewportWidth:  p.env.ViewportWidth,
		ViewportHeight: p.env.ViewportHeight,
		Branch:         s.cfg.Branch,
	})
	s.render(res, req, http.StatusOK, shellPage(shellData{
		GameURL: gameURL,
		State:   p.controller.State(),
		Config: shellConfig{
			StateURL:  "/api/play/" + p.id,
			StreamURL: "/api/play/" + p.id + "/stream",
			EventsURL: "/api/play/" + p.id + "/events",
			ReloadURL: playURL(p.id),
		},
	}))
}

func (s *Server) render(res http.ResponseWriter, req *http.Request, status int, c templ.Component) {
	res.Header().Set("cache-control", "no-store")
	templ.Handler(c, templ.WithStatus(status), templ.WithErrorHandler(renderFailed)).ServeHTTP(res, req)
}

func renderFailed(req *http.Request, err error) http.Handler {
	logging.From(req.Context()).Error("Failed to render page", zap.Error(err))
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		http.Error(res, "failed to render page", http.StatusInternalServerError)
	})
}

func playURL(id string) string {
	return "/playgame?page=" + url.QueryEscape(id)
}

func writeJSON(res http.ResponseWriter, status int, v interface{}) {
	res.Header().Set("content-type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		fmt.Printf("Failed to encode response: %v\n", err)
	}
}
