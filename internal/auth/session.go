package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tiny-little/royale-web/internal/backend"
	"github.com/tiny-little/royale-web/internal/store"
)

const (
	SessionCookieName = "session"
	SessionTTL        = 30 * 24 * time.Hour
)

var ErrNoSession = errors.New("no identity provider session")
var ErrInvalidSession = errors.New("identity provider session is invalid")

// SessionClaims identify a visitor who signed in through an identity provider. The
// provider's subject id is carried as the registered subject claim.
type SessionClaims struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the payload the backend expects for an OAuth
// exchange
func (c *SessionClaims) Identity() backend.OAuthIdentity {
	return backend.OAuthIdentity{
		Name:     c.Name,
		Image:    c.Picture,
		Email:    c.Email,
		Provider: c.Provider,
		Sub:      c.Subject,
	}
}

func (s *Server) signSession(identity backend.OAuthIdentity, now time.Time) (string, error) {
	if len(s.sessionSecret) == 0 {
		return "", fmt.Errorf("session secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Provider: identity.Provider,
		Email:    identity.Email,
		Name:     identity.Name,
		Picture:  identity.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	})
	return token.SignedString(s.sessionSecret)
}

func (s *Server) parseSession(value string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return s.sessionSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Session returns the identity provider session carried by req, if any
func (s *Server) Session(req *http.Request) (*SessionClaims, error) {
	cookie, err := req.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	if len(s.sessionSecret) == 0 {
		return nil, ErrInvalidSession
	}
	return s.parseSession(cookie.Value)
}

func (s *Server) setSessionCookie(res http.ResponseWriter, identity backend.OAuthIdentity) error {
	now := s.now()
	value, err := s.signSession(identity, now)
	if err != nil {
		return err
	}
	http.SetCookie(res, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  now.Add(SessionTTL),
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(res http.ResponseWriter) {
	http.SetCookie(res, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// ExchangeSession trades an identity provider session for a member account
// credential and persists it to st
func (s *Server) ExchangeSession(ctx context.Context, st store.Store, claims *SessionClaims) (store.Account, error) {
	return s.exchange(ctx, st, claims.Identity())
}

func (s *Server) exchange(ctx context.Context, st store.Store, identity backend.OAuthIdentity) (store.Account, error) {
	result, err := s.backend.OAuthLogin(ctx, identity)
	if err != nil {
		return store.Account{}, err
	}
	account := result.Account()
	if err := store.SaveAccount(st, account, s.now()); err != nil {
		return store.Account{}, fmt.Errorf("failed to persist account credential: %w", err)
	}
	return account, nil
}
