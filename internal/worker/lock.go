package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when another holder owns the lock.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker hands out best-effort mutual exclusion across replicas.
type Locker interface {
	// TryLock makes one attempt and returns an unlock func on success.
	TryLock(ctx context.Context, key string, expiry time.Duration) (func(context.Context) error, error)
}

type redisLocker struct {
	rs *redsync.Redsync
}

// NewRedisLocker creates a redsync backed Locker.
func NewRedisLocker(client redis.UniversalClient) Locker {
	return &redisLocker{rs: redsync.New(goredis.NewPool(client))}
}

func (l *redisLocker) TryLock(ctx context.Context, key string, expiry time.Duration) (func(context.Context) error, error) {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var errTaken *redsync.ErrTaken
		if errors.As(err, &errTaken) || errors.Is(err, redsync.ErrFailed) {
			return nil, ErrLockNotAcquired
		}
		return nil, err
	}

	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("failed to unlock")
		}
		return nil
	}, nil
}

type localLocker struct{}

// NewLocalLocker returns a Locker that always succeeds, for single-replica setups.
func NewLocalLocker() Locker {
	return localLocker{}
}

func (localLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
