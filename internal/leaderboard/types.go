package leaderboard

import (
	"context"
	"encoding/json"
	"time"
)

const (
	DefaultType  = "monthly-deathmatch"
	DefaultLimit = 20
	MaxLimit     = 100
	CacheTTL     = 60 * time.Second
)

// Backend fetches a tournament's leaderboard in whatever shape the backend API
// currently produces
type Backend interface {
	Leaderboard(ctx context.Context, gameID string, tournamentType string, limit int) (json.RawMessage, error)
}

// Cache stores normalized leaderboard payloads. Get returns ErrCacheMiss when key is
// absent or has expired.
type Cache interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	Ping(ctx context.Context) error
}
