package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "another run holds the lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// DefaultLockTTL bounds how long a crashed run can block the next one.  A
// live run keeps the lock through KeepAlive, so the TTL does not limit how
// long a run may take.
const DefaultLockTTL = 30 * time.Minute

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RunLock is a single-owner mutex held for the duration of a pipeline run.
type RunLock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
	logger logging.Logger
}

// NewRunLock creates a lock named name.  A non-positive ttl uses
// DefaultLockTTL.
func NewRunLock(client *Client, name string, ttl time.Duration, log logging.Logger) *RunLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RunLock{
		client: client,
		key:    client.Key("lock", name),
		value:  uuid.NewString(),
		ttl:    ttl,
		logger: log.Named("lock"),
	}
}

// Key returns the Redis key backing the lock.
func (l *RunLock) Key() string { return l.key }

// Acquire takes the lock or returns ErrLockNotAcquired without waiting.
func (l *RunLock) Acquire(ctx context.Context) error {
	rdb, err := l.client.Underlying()
	if err != nil {
		return err
	}
	ok, err := rdb.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
	}
	if !ok {
		return ErrLockNotAcquired.WithDetail(l.key)
	}
	l.logger.Debug("lock acquired", logging.String("key", l.key), logging.Duration("ttl", l.ttl))
	return nil
}

// Release deletes the lock if this owner still holds it.
func (l *RunLock) Release(ctx context.Context) error {
	rdb, err := l.client.Underlying()
	if err != nil {
		return err
	}
	res, err := unlockScript.Run(ctx, rdb, []string{l.key}, l.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(l.key)
	}
	return nil
}

// Extend resets the lock's TTL if this owner still holds it.
func (l *RunLock) Extend(ctx context.Context) error {
	rdb, err := l.client.Underlying()
	if err != nil {
		return err
	}
	res, err := extendScript.Run(ctx, rdb, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to extend lock")
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(l.key)
	}
	return nil
}

// KeepAlive extends the lock every third of its TTL until ctx is done or the
// returned stop function is called.  Losing the lock ends the renewals.
func (l *RunLock) KeepAlive(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := l.Extend(ctx)
			if err == nil || ctx.Err() != nil {
				continue
			}
			l.logger.Warn("failed to extend lock", logging.String("key", l.key), logging.Err(err))
			if errors.IsCode(err, errors.ErrCodeConflict) {
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
