package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates runs of the same project across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	// The returned UnlockFunc must be called to release it; the TTL bounds a lost holder.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
