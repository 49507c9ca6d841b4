package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader is echoed back on every response so that a user-reported failure
// can be matched to its log lines
const RequestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets streaming handlers see through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware tags each request with an id, attaches a logger carrying that id to the
// request context, and logs the request once it has been served
func Middleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
			start := time.Now()
			requestID := req.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			res.Header().Set(RequestIDHeader, requestID)

			logger := base.With(zap.String("request_id", requestID))
			rec := &statusRecorder{ResponseWriter: res, status: http.StatusOK}
			next.ServeHTTP(rec, req.WithContext(With(req.Context(), logger)))

			path := req.URL.Path
			logger.Info("Request",
				zap.String("method", req.Method),
				zap.String("path", path),
				zap.Int("status", rec.status),
				zap.Duration("latency", time.Since(start)),
				zap.String("user-agent", req.UserAgent()),
			)
		})
	}
}
