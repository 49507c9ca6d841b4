package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tiny-little/royale-web/internal/logging"
)

type Server struct {
	backend Backend
	cache   Cache
	gameID  string
}

func NewServer(b Backend, cache Cache, gameID string) *Server {
	return &Server{
		backend: b,
		cache:   cache,
		gameID:  gameID,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	for _, root := range []string{"", "/"} {
		r.Path(root).Methods("GET").HandlerFunc(s.handleGetLeaderboard)
	}
}

func (s *Server) handleGetLeaderboard(res http.ResponseWriter, req *http.Request) {
	tournamentType := req.URL.Query().Get("type")
	if tournamentType == "" {
		tournamentType = DefaultType
	}
	limit := DefaultLimit
	if limitStr := req.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			http.Error(res, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, MaxLimit)
	}

	entries := s.Entries(req.Context(), tournamentType, limit)
	res.Header().Set("content-type", "application/json")
	if _, err := res.Write(entries); err != nil {
		logging.From(req.Context()).Warn("Failed to write leaderboard response", zap.Error(err))
	}
}

// Entries returns the leaderboard as a JSON array, serving from the cache when
// possible. A leaderboard the backend can't produce is reported as empty, and is not
// cached.
func (s *Server) Entries(ctx context.Context, tournamentType string, limit int) json.RawMessage {
	logger := logging.From(ctx).With(zap.String("tournamentType", tournamentType), zap.Int("limit", limit))
	key := cacheKey(s.gameID, tournamentType, limit)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			return cached
		}
		if !errors.Is(err, ErrCacheMiss) {
			logger.Warn("Failed to read cached leaderboard", zap.Error(err))
		}
	}

	raw, err := s.backend.Leaderboard(ctx, s.gameID, tournamentType, limit)
	if err != nil {
		logger.Warn("Failed to fetch leaderboard", zap.Error(err))
		return emptyList
	}
	entries := normalize(raw)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries, CacheTTL); err != nil {
			logger.Warn("Failed to cache leaderboard", zap.Error(err))
		}
	}
	return entries
}

// Prefetch warms the cache with the default-sized leaderboard for each of the given
// tournament types
func (s *Server) Prefetch(ctx context.Context, tournamentTypes ...string) error {
	if s.cache == nil {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, tournamentType := range tournamentTypes {
		tournamentType := tournamentType
		g.Go(func() error {
			raw, err := s.backend.Leaderboard(ctx, s.gameID, tournamentType, DefaultLimit)
			if err != nil {
				return fmt.Errorf("failed to prefetch %s leaderboard: %w", tournamentType, err)
			}
			return s.cache.Set(ctx, cacheKey(s.gameID, tournamentType, DefaultLimit), normalize(raw), CacheTTL)
		})
	}
	return g.Wait()
}

func cacheKey(gameID string, tournamentType string, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%s:%d", gameID, tournamentType, limit)
}
