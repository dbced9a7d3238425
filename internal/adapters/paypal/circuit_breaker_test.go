package paypal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func newTestBreaker(now *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, Timeout: 10 * time.Second, MaxRequestsHalfOpen: 1})
	cb.now = func() time.Time { return *now }
	cb.lastStateChangeTime = *now
	return cb
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	now := fixedNow
	cb := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	now := fixedNow
	cb := newTestBreaker(&now)

	_ = cb.Call(func() error { return errBoom })
	_ = cb.Call(func() error { return errBoom })
	_ = cb.Call(func() error { return nil })
	_ = cb.Call(func() error { return errBoom })

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := fixedNow
	cb := newTestBreaker(&now)
	var transitions []CircuitState
	cb.OnStateChange(func(s CircuitState) { transitions = append(transitions, s) })

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return errBoom })
	}
	now = now.Add(11 * time.Second)

	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []CircuitState{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := fixedNow
	cb := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return errBoom })
	}
	now = now.Add(11 * time.Second)

	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
