package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tiny-little/royale-web/internal/clock"
	"github.com/tiny-little/royale-web/internal/logging"
	"github.com/tiny-little/royale-web/internal/session"
)

// Routes is implemented by the packages that serve a subtree of /api
type Routes interface {
	RegisterRoutes(r *mux.Router)
}

type Config struct {
	GameID      string
	GameURL     string
	Branch      string
	Production  bool
	CORSOrigins []string

	// AuthRateLimit is the sustained number of requests per second each client IP may
	// make to /api/auth, with bursts of up to AuthRateBurst
	AuthRateLimit rate.Limit
	AuthRateBurst int
}

type Server struct {
	http.Handler

	cfg      Config
	backend  session.Backend
	sessions Sessions
	recorder session.Recorder
	clk      clock.Clock
	logger   *zap.Logger
	plays    *playRegistry
}

type Options struct {
	Auth        Routes
	Leaderboard Routes
	Health      http.Handler
	Recorder    session.Recorder
	Clock       clock.Clock
	Logger      *zap.Logger
}

// New builds the HTTP surface of the site. sessions is normally the same auth.Server
// passed as opts.Auth.
func New(cfg Config, b session.Backend, sessions Sessions, opts Options) *Server {
	s := &Server{
		cfg:      cfg,
		backend:  b,
		sessions: sessions,
		recorder: opts.Recorder,
		clk:      opts.Clock,
		logger:   opts.Logger,
	}
	if s.clk == nil {
		s.clk = clock.Real{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.plays = newPlayRegistry(s.clk.Now)

	r := mux.NewRouter()
	r.Path("/playgame").Methods("GET").HandlerFunc(s.handlePlayGame)
	if opts.Health != nil {
		r.Path("/health").Methods("GET").Handler(opts.Health)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Path("/device").Methods("GET").HandlerFunc(s.handleGetDevice)
	api.Path("/session").Methods("GET").HandlerFunc(s.handleGetSession)
	api.Path("/session/retry").Methods("POST").HandlerFunc(s.handleRetrySession)
	api.Path("/play/{id}").Methods("GET").HandlerFunc(s.handleGetPlay)
	api.Path("/play/{id}/stream").Methods("GET").HandlerFunc(s.handleStreamPlay)
	api.Path("/play/{id}/events").Methods("POST").HandlerFunc(s.handlePostPlayEvent)
	if opts.Auth != nil {
		authRouter := api.PathPrefix("/auth").Subrouter()
		authRouter.Use(newIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, s.clk.Now).Middleware)
		opts.Auth.RegisterRoutes(authRouter)
	}
	if opts.Leaderboard != nil {
		opts.Leaderboard.RegisterRoutes(api.PathPrefix("/leaderboard").Subrouter())
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	s.Handler = logging.Middleware(s.logger)(apiOnly(c.Handler(r), r))
	return s
}

// Close tears down every play page that is still open
func (s *Server) Close() {
	s.plays.closeAll()
}

// Sweep closes play pages that have not been touched for longer than maxIdle
func (s *Server) Sweep(maxIdle time.Duration) int {
	return s.plays.sweep(maxIdle)
}

// apiOnly routes /api requests through withCORS and everything else straight to next
func apiOnly(withCORS http.Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/api/") {
			withCORS.ServeHTTP(res, req)
			return
		}
		next.ServeHTTP(res, req)
	})
}
