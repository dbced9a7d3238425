package ports

import (
	"context"
	"errors"
	"time"
)

// Locker serialises lifecycle operations on the same entity.
// The returned release func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ErrLockNotAcquired is returned when the lock wait budget runs out
var ErrLockNotAcquired = errors.New("entity is locked by another operation")
