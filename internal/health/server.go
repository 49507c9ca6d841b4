package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// checkTimeout bounds each dependency check, so that a hung dependency can't hang
// the health endpoint along with it
const checkTimeout = 5 * time.Second

type CheckFunc func(ctx context.Context) error

type Status struct {
	IsReady bool   `json:"isReady"`
	Message string `json:"message"`
}

type Server struct {
	checkBackend CheckFunc
	checkCache   CheckFunc
}

// NewServer reports on the backend API, which nothing works without, and on the
// leaderboard cache, which only degrades the site when it's unavailable. checkCache
// may be nil if no shared cache is configured.
func NewServer(checkBackend CheckFunc, checkCache CheckFunc) *Server {
	return &Server{
		checkBackend: checkBackend,
		checkCache:   checkCache,
	}
}

func (s *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	status := s.resolveStatus(req.Context())
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(status); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) resolveStatus(ctx context.Context) Status {
	if err := check(ctx, s.checkBackend); err != nil {
		return Status{
			IsReady: false,
			Message: fmt.Sprintf("The backend API is unreachable; game sessions can't be started. (Error: %s)", err),
		}
	}

	if s.checkCache != nil {
		if err := check(ctx, s.checkCache); err != nil {
			return Status{
				IsReady: false,
				Message: fmt.Sprintf(
					"The backend API is reachable, but the leaderboard cache is unavailable. (Error: %s)",
					err,
				),
			}
		}
	}

	return Status{
		IsReady: true,
		Message: "The backend API is reachable and game sessions can be started. The royale web server is fully operational!",
	}
}

func check(ctx context.Context, f CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return f(ctx)
}
