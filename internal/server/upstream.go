package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tiny-little/royale-web/internal/auth"
	"github.com/tiny-little/royale-web/internal/logging"
	"github.com/tiny-little/royale-web/internal/session"
	"github.com/tiny-little/royale-web/internal/store"
)

// Sessions gives access to the identity provider session carried by a request, and
// trades it for a member account credential. It's implemented by auth.Server.
type Sessions interface {
	Session(req *http.Request) (*auth.SessionClaims, error)
	ExchangeSession(ctx context.Context, st store.Store, claims *auth.SessionClaims) (store.Account, error)
}

// upstream settles both identity sources for req. A visitor who signed in through an
// identity provider but has no account credential yet gets one exchanged on the spot;
// if that exchange fails the result is left unsettled, and resolution waits for a
// later attempt rather than treating the member as a guest.
func (s *Server) upstream(ctx context.Context, req *http.Request, st store.Store) session.Upstream {
	logger := logging.From(ctx)

	up := session.Upstream{OAuth: session.OAuthUnauthenticated}
	if account, ok := store.LoadAccount(st); ok {
		up.AccountToken = account.Token
	}
	if s.sessions == nil {
		return up
	}

	claims, err := s.sessions.Session(req)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			logger.Info("Ignoring invalid identity provider session", zap.Error(err))
		}
		return up
	}
	up.OAuth = session.OAuthAuthenticated
	if up.HasAccount() {
		return up
	}

	account, err := s.sessions.ExchangeSession(ctx, st, claims)
	if err != nil {
		logger.Warn("Failed to exchange identity provider session for account",
			zap.String("provider", claims.Provider),
			zap.Error(err),
		)
		return up
	}
	up.AccountToken = account.Token
	return up
}
