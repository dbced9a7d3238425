package shutdown

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_shutdown_duration_seconds",
		Help:    "Time taken to stop all components",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_shutdown_errors_total",
		Help: "Component shutdown failures",
	}, []string{"component"})
)

// Func stops one component within the deadline of ctx
type Func func(context.Context) error

type component struct {
	name string
	fn   Func
}

// Manager stops registered components one at a time in reverse
// registration order, so servers stop before the pools they use.
type Manager struct {
	logger     *zap.Logger
	components []component
	mu         sync.Mutex
	timeout    time.Duration
	once       sync.Once
}

func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{logger: logger, timeout: timeout}
}

func (m *Manager) Register(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, fn: fn})
}

// RegisterCloser registers a component with a Close method
func (m *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	m.Register(name, func(context.Context) error { return closer.Close() })
}

// RegisterNoErr registers a shutdown hook that cannot fail
func (m *Manager) RegisterNoErr(name string, fn func()) {
	m.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx is done, then shuts down
func (m *Manager) WaitForSignal(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	m.logger.Info("Shutdown requested", zap.Duration("timeout", m.timeout))
	m.Shutdown()
}

// Shutdown stops every component once and returns the failures by name
func (m *Manager) Shutdown() map[string]error {
	var failures map[string]error
	m.once.Do(func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		failures = m.stopAll(ctx)
		shutdownDuration.Observe(time.Since(start).Seconds())

		if len(failures) > 0 {
			m.logger.Error("Shutdown completed with errors",
				zap.Int("error_count", len(failures)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return
		}
		m.logger.Info("Shutdown completed", zap.Duration("elapsed", time.Since(start)))
	})
	return failures
}

func (m *Manager) stopAll(ctx context.Context) map[string]error {
	m.mu.Lock()
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	failures := make(map[string]error)
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.fn(ctx); err != nil {
			failures[c.name] = err
			shutdownErrors.WithLabelValues(c.name).Inc()
			m.logger.Error("Component shutdown failed", zap.String("component", c.name), zap.Error(err))
			continue
		}
		m.logger.Debug("Component stopped", zap.String("component", c.name))
	}
	return failures
}
