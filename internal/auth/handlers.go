package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tiny-little/royale-web/internal/backend"
	"github.com/tiny-little/royale-web/internal/logging"
	"github.com/tiny-little/royale-web/internal/store"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateTTL        = 10 * time.Minute
	maxRequestBodySize   = 64 << 10
)

func (s *Server) handleCredentialsLogin(res http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(req, &payload); err != nil {
		http.Error(res, "request body must be JSON", http.StatusBadRequest)
		return
	}
	if payload.Email == "" || payload.Password == "" {
		http.Error(res, "email and password are required", http.StatusBadRequest)
		return
	}

	result, err := s.backend.CredentialsLogin(req.Context(), payload.Email, payload.Password)
	if err != nil {
		logging.From(req.Context()).Warn("Credential login failed", zap.Error(err))
		status := backendErrorStatus(err)
		message := "Login failed"
		if errors.Is(err, backend.ErrUnauthorized) {
			message = "Invalid email or password"
		}
		writeJSON(res, status, LoginResult{Success: false, Message: message, Error: err.Error()})
		return
	}

	profile := result.User
	jar := store.NewCookieJar(res, req, s.production)
	if err := store.SaveAccount(jar, store.Account{Token: result.Token, Profile: &profile}, s.now()); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(res, http.StatusOK, LoginResult{Success: true, Token: result.Token, User: &profile})
}

func (s *Server) handleRegister(res http.ResponseWriter, req *http.Request) {
	var payload map[string]interface{}
	if err := decodeBody(req, &payload); err != nil {
		http.Error(res, "request body must be JSON", http.StatusBadRequest)
		return
	}
	for _, field := range []string{"email", "password"} {
		if value, _ := payload[field].(string); value == "" {
			http.Error(res, fmt.Sprintf("'%s' is required", field), http.StatusBadRequest)
			return
		}
	}

	if err := s.backend.Register(req.Context(), payload); err != nil {
		logging.From(req.Context()).Warn("Registration failed", zap.Error(err))
		writeJSON(res, backendErrorStatus(err), LoginResult{Success: false, Message: "Registration failed", Error: err.Error()})
		return
	}
	writeJSON(res, http.StatusCreated, LoginResult{Success: true, Message: "Registration successful"})
}

// handleOAuthLogin exchanges an identity the client obtained from a provider on its
// own for a member account credential
func (s *Server) handleOAuthLogin(res http.ResponseWriter, req *http.Request) {
	var identity backend.OAuthIdentity
	if err := decodeBody(req, &identity); err != nil {
		http.Error(res, "request body must be JSON", http.StatusBadRequest)
		return
	}
	if identity.Email == "" || identity.Name == "" || identity.Provider == "" {
		writeJSON(res, http.StatusBadRequest, LoginResult{Error: "Missing required fields: email, name, provider"})
		return
	}
	if identity.Sub == "" {
		identity.Sub = identity.Email
	}

	jar := store.NewCookieJar(res, req, s.production)
	account, err := s.exchange(req.Context(), jar, identity)
	if err != nil {
		logging.From(req.Context()).Error("OAuth login failed", zap.String("provider", identity.Provider), zap.Error(err))
		writeJSON(res, backendErrorStatus(err), LoginResult{Message: "Backend OAuth login failed", Error: err.Error()})
		return
	}
	writeJSON(res, http.StatusOK, LoginResult{Success: true, Token: account.Token, User: account.Profile})
}

// handleProviderLogin starts the OAuth code flow by redirecting to the provider
func (s *Server) handleProviderLogin(res http.ResponseWriter, req *http.Request) {
	provider, ok := s.providers[mux.Vars(req)["provider"]]
	if !ok {
		http.Error(res, "unsupported identity provider", http.StatusNotFound)
		return
	}

	state := uuid.NewString()
	http.SetCookie(res, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/api/auth",
		Expires:  s.now().Add(oauthStateTTL),
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(res, req, provider.Config.AuthCodeURL(state, provider.AuthOptions...), http.StatusFound)
}

// handleProviderCallback completes the OAuth code flow: the visitor gets an identity
// provider session cookie and, if the backend accepts the identity, an account
// credential
func (s *Server) handleProviderCallback(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := logging.From(ctx)

	provider, ok := s.providers[mux.Vars(req)["provider"]]
	if !ok {
		http.Error(res, "unsupported identity provider", http.StatusNotFound)
		return
	}
	if reason := req.URL.Query().Get("error"); reason != "" {
		logger.Info("Visitor declined provider sign-in", zap.String("provider", provider.Name), zap.String("reason", reason))
		http.Redirect(res, req, "/auth/signin?error="+url.QueryEscape(reason), http.StatusFound)
		return
	}

	stateCookie, err := req.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != req.URL.Query().Get("state") {
		http.Error(res, "OAuth state mismatch", http.StatusBadRequest)
		return
	}
	http.SetCookie(res, &http.Cookie{Name: oauthStateCookieName, Path: "/api/auth", MaxAge: -1})

	code := req.URL.Query().Get("code")
	if code == "" {
		http.Error(res, "'code' URL parameter is required", http.StatusBadRequest)
		return
	}
	token, err := provider.Config.Exchange(ctx, code)
	if err != nil {
		logger.Error("Failed to exchange authorization code", zap.String("provider", provider.Name), zap.Error(err))
		http.Error(res, "failed to complete sign-in", http.StatusUnauthorized)
		return
	}
	identity, err := provider.fetchIdentity(ctx, token)
	if err != nil {
		logger.Error("Failed to identify visitor", zap.String("provider", provider.Name), zap.Error(err))
		http.Error(res, "failed to complete sign-in", http.StatusBadGateway)
		return
	}

	if err := s.setSessionCookie(res, identity); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	// If this fails the session cookie still stands, and the exchange is attempted
	// again on the next page load
	jar := store.NewCookieJar(res, req, s.production)
	if _, err := s.exchange(ctx, jar, identity); err != nil {
		logger.Error("Failed to exchange provider identity for account", zap.String("provider", provider.Name), zap.Error(err))
	}
	http.Redirect(res, req, "/", http.StatusFound)
}

func (s *Server) handleTelegram(res http.ResponseWriter, req *http.Request) {
	logger := logging.From(req.Context())

	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBodySize))
	if err != nil {
		http.Error(res, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := parseTelegramPayload(body)
	if err != nil {
		writeJSON(res, http.StatusBadRequest, LoginResult{Message: "request body must be a JSON object"})
		return
	}

	if err := payload.validate(s.now()); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrTelegramExpired) {
			status = http.StatusUnauthorized
		}
		writeJSON(res, status, LoginResult{Message: err.Error()})
		return
	}

	if s.production {
		if s.telegramBotToken == "" {
			writeJSON(res, http.StatusInternalServerError, LoginResult{Message: "telegram bot token not configured"})
			return
		}
		if !payload.verify(s.telegramBotToken) {
			writeJSON(res, http.StatusUnauthorized, LoginResult{Message: ErrTelegramInvalidHash.Error()})
			return
		}
	} else {
		logger.Debug("Skipping telegram hash verification outside production")
	}

	jar := store.NewCookieJar(res, req, s.production)
	account, err := s.exchange(req.Context(), jar, payload.identity())
	if err != nil {
		logger.Error("Telegram authentication failed", zap.Error(err))
		writeJSON(res, backendErrorStatus(err), LoginResult{Message: "Backend authentication failed", Error: err.Error()})
		return
	}
	writeJSON(res, http.StatusOK, LoginResult{
		Success: true,
		Message: "Telegram authentication successful",
		Token:   account.Token,
		User:    account.Profile,
	})
}

func (s *Server) handleLogout(res http.ResponseWriter, req *http.Request) {
	jar := store.NewCookieJar(res, req, s.production)
	if err := store.ClearAccount(jar); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.clearSessionCookie(res)
	writeJSON(res, http.StatusOK, AuthState{LoggedIn: false})
}

// handleMe reports the visitor's member identity, which only the stored account
// credential establishes. A bearer token in the Authorization header naming any other
// credential reports the visitor as signed out.
func (s *Server) handleMe(res http.ResponseWriter, req *http.Request) {
	jar := store.NewCookieJar(res, req, s.production)
	account, ok := store.LoadAccount(jar)
	if bearer := parseAuthorizationHeader(req.Header.Get("authorization")); bearer != "" && bearer != account.Token {
		account, ok = store.Account{}, false
	}

	state := AuthState{LoggedIn: ok}
	if ok {
		state.User = account.Profile
	}
	if claims, err := s.Session(req); err == nil {
		state.Provider = claims.Provider
	}
	writeJSON(res, http.StatusOK, state)
}

func decodeBody(req *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(req.Body, maxRequestBodySize)).Decode(v)
}

func writeJSON(res http.ResponseWriter, status int, v interface{}) {
	res.Header().Set("content-type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		fmt.Printf("Failed to encode response: %v\n", err)
	}
}

// backendErrorStatus passes client errors reported by the backend through to our
// caller and reports everything else as a bad gateway
func backendErrorStatus(err error) int {
	if code := backend.StatusCode(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}
