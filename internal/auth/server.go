package auth

import (
	"context"
	"time"

	"github.com/gorilla/mux"

	"github.com/tiny-little/royale-web/internal/backend"
)

// Backend is the subset of the backend API used to establish member identity
type Backend interface {
	CredentialsLogin(ctx context.Context, email string, password string) (*backend.LoginResponse, error)
	OAuthLogin(ctx context.Context, identity backend.OAuthIdentity) (*backend.AuthResponse, error)
	Register(ctx context.Context, payload map[string]interface{}) error
}

type Config struct {
	// PublicURL is the externally-visible origin used to build OAuth redirect URIs
	PublicURL string
	// SessionSecret signs the OAuth session cookie
	SessionSecret    string
	TelegramBotToken string
	// Production enables Telegram hash verification and Secure cookies
	Production bool

	Google   ProviderCredentials
	Facebook ProviderCredentials
	Line     ProviderCredentials
}

type Server struct {
	backend          Backend
	providers        map[string]*Provider
	sessionSecret    []byte
	telegramBotToken string
	production       bool
	now              func() time.Time
}

func NewServer(b Backend, cfg Config) *Server {
	return &Server{
		backend:          b,
		providers:        configureProviders(cfg),
		sessionSecret:    []byte(cfg.SessionSecret),
		telegramBotToken: cfg.TelegramBotToken,
		production:       cfg.Production,
		now:              time.Now,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	// Email/password accounts managed by the backend
	r.Path("/credentials/login").Methods("POST").HandlerFunc(s.handleCredentialsLogin)
	r.Path("/register").Methods("POST").HandlerFunc(s.handleRegister)

	// Identity-provider sign-in: either the full OAuth code flow, handled here, or an
	// identity the client already obtained being exchanged for an account credential
	r.Path("/{provider}/login").Methods("GET").HandlerFunc(s.handleProviderLogin)
	r.Path("/{provider}/callback").Methods("GET").HandlerFunc(s.handleProviderCallback)
	r.Path("/oauth-login").Methods("POST").HandlerFunc(s.handleOAuthLogin)
	r.Path("/telegram").Methods("POST").HandlerFunc(s.handleTelegram)

	r.Path("/logout").Methods("POST").HandlerFunc(s.handleLogout)
	r.Path("/me").Methods("GET").HandlerFunc(s.handleMe)
}

// Production reports whether cookies should be marked Secure
func (s *Server) Production() bool {
	return s.production
}
