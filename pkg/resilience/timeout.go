package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (60s)
//	  ↓
//	Processor call (30s)
//	  ↓
//	Entity lock wait (10s)
//
// Reconciliation runs get their own, much longer, budget.
type TimeoutConfig struct {
	HTTPHandler time.Duration
	CronJob     time.Duration

	ExternalAPI time.Duration
	LockWait    time.Duration

	// LockTTL bounds how long a crashed holder can keep an entity locked
	LockTTL time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 60 * time.Second,
		CronJob:     10 * time.Minute,
		ExternalAPI: 30 * time.Second,
		LockWait:    10 * time.Second,
		LockTTL:     45 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 5 * time.Second,
		CronJob:     30 * time.Second,
		ExternalAPI: 2 * time.Second,
		LockWait:    1 * time.Second,
		LockTTL:     3 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// CronContext creates a context with timeout for reconciliation runs
func (tc *TimeoutConfig) CronContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.CronJob)
}

// ExternalAPIContext creates a context for a single processor call
func (tc *TimeoutConfig) ExternalAPIContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ExternalAPI)
}

// LockWaitContext bounds how long a caller queues for an entity lock
func (tc *TimeoutConfig) LockWaitContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.LockWait)
}
