package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const trackerKeySuffix = "scheduler:last:"

// Tracker remembers the last interval end enqueued per dataset
type Tracker interface {
	// LastScheduled returns the zero time when the dataset was never scheduled
	LastScheduled(ctx context.Context, dataset string) (time.Time, error)
	SetLastScheduled(ctx context.Context, dataset string, intervalEnd time.Time) error
}

type redisTracker struct {
	redis  redis.UniversalClient
	prefix string
}

// NewTracker creates a Redis-backed tracker. keyPrefix namespaces the keys.
func NewTracker(client redis.UniversalClient, keyPrefix string) Tracker {
	prefix := trackerKeySuffix
	if keyPrefix != "" {
		prefix = keyPrefix + ":" + trackerKeySuffix
	}

	return &redisTracker{redis: client, prefix: prefix}
}

func (r *redisTracker) LastScheduled(ctx context.Context, dataset string) (time.Time, error) {
	val, err := r.redis.Get(ctx, r.prefix+dataset).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}

		return time.Time{}, fmt.Errorf("failed to get last schedule of %s: %w", dataset, err)
	}

	ts, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last schedule of %s: %w", dataset, err)
	}

	return ts, nil
}

func (r *redisTracker) SetLastScheduled(ctx context.Context, dataset string, intervalEnd time.Time) error {
	if err := r.redis.Set(ctx, r.prefix+dataset, intervalEnd.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to set last schedule of %s: %w", dataset, err)
	}

	return nil
}

var _ Tracker = (*redisTracker)(nil)
