package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ShutdownCoordinator stops named components in reverse registration order.
// A node registers its storage first and its network surfaces last, so
// listeners stop before the state they serve is closed.
type ShutdownCoordinator struct {
	mu       sync.Mutex
	logger   *slog.Logger
	handlers []namedHandler
	done     bool
}

type namedHandler struct {
	name string
	fn   func(context.Context) error
}

// NewShutdownCoordinator returns a coordinator logging to logger, or to
// slog.Default() when logger is nil.
func NewShutdownCoordinator(logger *slog.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{logger: logger}
}

// Register adds a shutdown handler. Handlers registered after Shutdown has
// run are ignored.
func (s *ShutdownCoordinator) Register(name string, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		s.log().Warn("shutdown handler registered after shutdown", "component", name)
		return
	}
	s.handlers = append(s.handlers, namedHandler{name: name, fn: fn})
}

// Components returns the registered handler names in the order they will run.
func (s *ShutdownCoordinator) Components() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.handlers))
	for i := len(s.handlers) - 1; i >= 0; i-- {
		names = append(names, s.handlers[i].name)
	}
	return names
}

// Shutdown runs every handler once, last registered first, even after an
// earlier handler fails or ctx expires. Later calls return nil.
func (s *ShutdownCoordinator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	logger := s.log()
	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		start := time.Now()
		if err := h.fn(ctx); err != nil {
			logger.Error("shutdown error", "component", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		logger.Info("component stopped", "component", h.name, "duration", time.Since(start))
	}
	return errors.Join(errs...)
}

func (s *ShutdownCoordinator) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
