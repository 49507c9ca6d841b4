// Package sse pushes state to browsers as Server-Sent Events
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tiny-little/royale-web/internal/logging"
)

// DefaultKeepAlive keeps idle connections from being dropped by proxies
const DefaultKeepAlive = 30 * time.Second

// Stream is an HTTP handler that serves the latest value of some state, followed by
// every value published after that, as a text/event-stream with each 'data' line
// holding a JSON-encoded value
type Stream[T any] struct {
	b        bus[T]
	current  func() T
	interval time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewStream initializes a stream whose connections open with the value returned by
// current
func NewStream[T any](current func() T) *Stream[T] {
	return &Stream[T]{
		b:        newBus[T](),
		current:  current,
		interval: DefaultKeepAlive,
		done:     make(chan struct{}),
	}
}

// Publish sends value to every open connection
func (s *Stream[T]) Publish(value T) {
	s.b.publish(value)
}

// Close ends every open connection; connections opened afterwards receive the
// current value and are then closed immediately
func (s *Stream[T]) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Stream[T]) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	logger := logging.From(req.Context())

	// If a content-type is explicitly requested, require that it's text/event-stream
	accept := req.Header.Get("accept")
	if accept != "" && accept != "*/*" && !strings.HasPrefix(accept, "text/event-stream") {
		message := fmt.Sprintf("content-type %s is not supported", accept)
		http.Error(res, message, http.StatusBadRequest)
		return
	}
	flusher, ok := res.(http.Flusher)
	if !ok {
		http.Error(res, "streaming is not supported", http.StatusInternalServerError)
		return
	}

	res.Header().Set("content-type", "text/event-stream")
	res.Header().Set("cache-control", "no-cache")
	res.Header().Set("connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	// Register before reading the current value, so that nothing published in between
	// is missed
	ch := make(chan T, 32)
	s.b.register(ch)
	defer s.b.unregister(ch)

	write := func(value T) {
		data, err := json.Marshal(value)
		if err != nil {
			logger.Error("Failed to serialize SSE message as JSON", zap.Error(err))
			return
		}
		fmt.Fprintf(res, "data: %s\n\n", data)
		flusher.Flush()
	}
	write(s.current())

	keepAlive := time.NewTicker(s.interval)
	defer keepAlive.Stop()
	for {
		select {
		case <-keepAlive.C:
			res.Write([]byte(":\n\n"))
			flusher.Flush()
		case value := <-ch:
			write(value)
		case <-s.done:
			logger.Debug("Stream closed; abandoning SSE connection")
			return
		case <-req.Context().Done():
			return
		}
	}
}
