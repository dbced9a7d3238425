package locking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"github.com/kevin07696/paypal-billing/test/mocks"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis emulates SET NX and the compare-and-delete script
type fakeRedis struct {
	mu     sync.Mutex
	keys   map[string]string
	setErr error
	evals  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, taken := f.keys[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok
}

func newTestRedisLocker(client RedisClient) *RedisLocker {
	l := NewRedisLocker(client, "billing:lock:", mocks.NewMockLogger())
	l.backoff = &resilience.FixedBackoff{Delay: time.Millisecond}
	return l
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	client := newFakeRedis()
	locker := newTestRedisLocker(client)

	release, err := locker.Lock(context.Background(), "payment:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, client.held("billing:lock:payment:1"))

	release()
	release()
	assert.False(t, client.held("billing:lock:payment:1"))
	assert.Equal(t, 1, client.evals)
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	client := newFakeRedis()
	locker := newTestRedisLocker(client)

	release, err := locker.Lock(context.Background(), "agreement:1", time.Minute)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(context.Background(), "agreement:1", time.Minute)
		if err == nil {
			second()
		}
		close(acquired)
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired")
	}
}

func TestRedisLocker_ContextExpires(t *testing.T) {
	client := newFakeRedis()
	locker := newTestRedisLocker(client)

	_, err := locker.Lock(context.Background(), "payment:2", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "payment:2", time.Minute)
	assert.ErrorIs(t, err, ports.ErrLockNotAcquired)
}

func TestRedisLocker_ClientError(t *testing.T) {
	client := newFakeRedis()
	client.setErr = errors.New("connection refused")
	locker := newTestRedisLocker(client)

	_, err := locker.Lock(context.Background(), "payment:3", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrLockNotAcquired)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLocalLocker_SerialisesSameKey(t *testing.T) {
	locker := NewLocalLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), "payment:1", 0)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locker.locks)
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	first, err := locker.Lock(context.Background(), "payment:1", 0)
	require.NoError(t, err)
	defer first()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second, err := locker.Lock(ctx, "payment:2", 0)
	require.NoError(t, err)
	second()
}

func TestLocalLocker_ContextExpires(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Lock(context.Background(), "payment:1", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "payment:1", 0)
	assert.ErrorIs(t, err, ports.ErrLockNotAcquired)

	release()
	assert.Empty(t, locker.locks)
}
