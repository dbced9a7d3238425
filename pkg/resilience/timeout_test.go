package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeoutConfig_Hierarchy(t *testing.T) {
	for name, config := range map[string]*TimeoutConfig{
		"default": DefaultTimeoutConfig(),
		"test":    TestTimeoutConfig(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Greater(t, config.HTTPHandler, config.ExternalAPI)
			assert.Greater(t, config.ExternalAPI, config.LockWait)
			assert.Greater(t, config.LockTTL, config.LockWait)
			assert.Greater(t, config.CronJob, config.HTTPHandler)
		})
	}
}

func TestHandlerContext_Deadline(t *testing.T) {
	config := DefaultTimeoutConfig()

	ctx, cancel := config.HandlerContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(config.HTTPHandler), deadline, 100*time.Millisecond)
}

func TestTimeoutHierarchyPreservation(t *testing.T) {
	config := DefaultTimeoutConfig()

	parent, parentCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer parentCancel()

	child, childCancel := config.CronContext(parent)
	defer childCancel()

	parentDeadline, _ := parent.Deadline()
	childDeadline, _ := child.Deadline()

	assert.False(t, childDeadline.After(parentDeadline))
}

func TestContextCancellationPropagation(t *testing.T) {
	config := DefaultTimeoutConfig()

	parent, cancel := context.WithCancel(context.Background())
	child, childCancel := config.ExternalAPIContext(parent)
	defer childCancel()

	cancel()

	select {
	case <-child.Done():
		assert.ErrorIs(t, child.Err(), context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("child context was not cancelled")
	}
}
