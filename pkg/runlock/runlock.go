// Package runlock serialises runs of the same dataset across workers with a
// Redis lease
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix = "lock:"

	// DefaultTTL bounds how long a crashed worker can hold a dataset
	DefaultTTL = 2 * time.Hour
)

var (
	// ErrLocked is returned when another run holds the dataset
	ErrLocked = errors.New("dataset is locked by another run")
	// ErrNotHeld is returned when a lease expired or was taken over
	ErrNotHeld = errors.New("lock is no longer held")
)

//nolint:gochecknoglobals // Lua scripts are loaded once per process
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker hands out per-dataset leases
type Locker struct {
	log    logrus.FieldLogger
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLocker creates a locker. prefix namespaces the keys, ttl <= 0 uses DefaultTTL.
func NewLocker(log logrus.FieldLogger, client redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Locker{
		log:    log.WithField("component", "runlock"),
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Lock is a held lease on one dataset
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Key returns the Redis key of the lease
func (lk *Lock) Key() string {
	return lk.key
}

// Acquire takes the lease for a dataset or returns ErrLocked
func (l *Locker) Acquire(ctx context.Context, dataset string) (*Lock, error) {
	key := l.key(dataset)
	token := uuid.New().String()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dataset)
	}

	l.log.WithFields(logrus.Fields{
		"dataset": dataset,
		"ttl":     l.ttl,
	}).Debug("Acquired run lock")

	return &Lock{locker: l, key: key, token: token}, nil
}

// Refresh extends the lease by the locker's TTL
func (lk *Lock) Refresh(ctx context.Context) error {
	res, err := refreshScript.Run(ctx, lk.locker.redis, []string{lk.key}, lk.token, lk.locker.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", lk.key, err)
	}

	if res == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, lk.key)
	}

	return nil
}

// KeepAlive refreshes the lease every third of the TTL until the returned
// stop function is called. A lost lease ends the refresh.
func (lk *Lock) KeepAlive(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		interval := lk.locker.ttl / 3
		if interval <= 0 {
			interval = lk.locker.ttl
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lk.Refresh(ctx)
				if err == nil || ctx.Err() != nil {
					continue
				}

				lk.locker.log.WithError(err).WithField("key", lk.key).Warn("Failed to refresh run lock")

				if errors.Is(err, ErrNotHeld) {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Release drops the lease if it is still ours
func (lk *Lock) Release(ctx context.Context) error {
	res, err := releaseScript.Run(ctx, lk.locker.redis, []string{lk.key}, lk.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lk.key, err)
	}

	if res == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, lk.key)
	}

	lk.locker.log.WithField("key", lk.key).Debug("Released run lock")

	return nil
}

func (l *Locker) key(dataset string) string {
	if l.prefix == "" {
		return keyPrefix + dataset
	}

	return l.prefix + ":" + keyPrefix + dataset
}
