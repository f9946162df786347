package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when a lock is still owned by another request.
var ErrLockHeld = errors.New("lock is held by another request")

// LockStore hands out distributed mutexes backed by redsync.
type LockStore struct {
	rs  *redsync.Redsync
	ttl time.Duration
}

// NewLockStore creates a new LockStore. Locks expire after ttl if never released.
func NewLockStore(client *redis.Client, ttl time.Duration) *LockStore {
	return &LockStore{
		rs:  redsync.New(goredis.NewPool(client)),
		ttl: ttl,
	}
}

// AcquirePaymentLock serializes payment initiation for a booking across
// instances. The returned func releases the lock.
func (s *LockStore) AcquirePaymentLock(ctx context.Context, bookingID string) (func(), error) {
	mutex := s.rs.NewMutex(
		fmt.Sprintf("lock:payment:booking:%s", bookingID),
		redsync.WithExpiry(s.ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, ErrLockHeld
		}
		return nil, err
	}

	return func() {
		_, _ = mutex.UnlockContext(context.WithoutCancel(ctx))
	}, nil
}
