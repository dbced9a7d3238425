package shutdown

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker counts running requests so shutdown can wait for them.
// Once draining starts new work is refused.
type InFlightTracker struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	draining bool
	logger   *zap.Logger
	name     string
}

func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{logger: logger, name: name}
}

// Add reports false once draining has started
func (t *InFlightTracker) Add() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *InFlightTracker) Done() {
	t.wg.Done()
}

// Middleware answers 503 while draining and tracks everything else
func (t *InFlightTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Add() {
			w.Header().Set("Connection", "close")
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer t.Done()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops accepting work and waits for running work or ctx
func (t *InFlightTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("In-flight work drained", zap.String("tracker", t.name))
		return nil
	case <-ctx.Done():
		t.logger.Warn("Timed out draining in-flight work", zap.String("tracker", t.name))
		return ctx.Err()
	}
}
