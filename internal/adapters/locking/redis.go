package locking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is never released by us.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisClient is the subset of go-redis the locker needs
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker serialises operations across service instances with SET NX PX
type RedisLocker struct {
	client  RedisClient
	prefix  string
	backoff resilience.BackoffStrategy
	logger  ports.Logger
}

func NewRedisLocker(client RedisClient, prefix string, logger ports.Logger) *RedisLocker {
	return &RedisLocker{
		client:  client,
		prefix:  prefix,
		backoff: resilience.LockWaitBackoff(),
		logger:  logger,
	}
}

// Lock polls until the key is free or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %s", ports.ErrLockNotAcquired, key)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.backoff.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s", ports.ErrLockNotAcquired, key)
		case <-timer.C:
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.client.Eval(releaseCtx, releaseScript, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("Failed to release lock",
					ports.String("key", fullKey),
					ports.Err(err),
				)
			}
		})
	}
	return release, nil
}
