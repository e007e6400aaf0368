package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const leaderKeySuffix = "scheduler:leader"

var (
	// ErrElectorStopped is returned when the elector is stopped while waiting for leadership
	ErrElectorStopped = errors.New("elector stopped while waiting for leadership")
)

// LeaderElector manages distributed leader election using Redis
type LeaderElector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	WaitForLeadership(ctx context.Context) error
}

// elector holds the leader key with a renewed lease
type elector struct {
	log        logrus.FieldLogger
	redis      redis.UniversalClient
	instanceID string
	leaderKey  string

	leaseTTL      time.Duration
	renewInterval time.Duration

	isLeader bool
	mu       sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	promoted chan struct{}
}

// NewLeaderElector creates a leader elector. keyPrefix namespaces the leader key.
func NewLeaderElector(log logrus.FieldLogger, client redis.UniversalClient, keyPrefix string, cfg *Config) LeaderElector {
	key := leaderKeySuffix
	if keyPrefix != "" {
		key = keyPrefix + ":" + leaderKeySuffix
	}

	return &elector{
		log:           log.WithField("component", "election"),
		redis:         client,
		instanceID:    uuid.New().String(),
		leaderKey:     key,
		leaseTTL:      cfg.LeaseTTL,
		renewInterval: cfg.RenewInterval,
		done:          make(chan struct{}),
		promoted:      make(chan struct{}, 1),
	}
}

func (e *elector) Start(ctx context.Context) error {
	e.log.WithField("instance_id", e.instanceID).Info("Starting leader election")

	e.elect(ctx)

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

func (e *elector) Stop() error {
	e.log.Info("Stopping leader election")
	close(e.done)

	e.wg.Wait()

	e.relinquish(context.Background())

	return nil
}

func (e *elector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.elect(ctx)
		}
	}
}

func (e *elector) elect(ctx context.Context) {
	wasLeader := e.IsLeader()
	acquired := e.tryAcquire(ctx)

	switch {
	case acquired && !wasLeader:
		e.setLeader(true)
		e.log.WithField("instance_id", e.instanceID).Info("Promoted to leader")

		select {
		case e.promoted <- struct{}{}:
		default:
		}
	case !acquired && wasLeader:
		e.setLeader(false)
		e.log.WithField("instance_id", e.instanceID).Warn("Demoted from leader")
	}
}

func (e *elector) tryAcquire(ctx context.Context) bool {
	ok, err := e.redis.SetNX(ctx, e.leaderKey, e.instanceID, e.leaseTTL).Result()
	if err != nil {
		e.log.WithError(err).Debug("Failed to acquire leader lock")
		return false
	}

	if ok {
		return true
	}

	owner, err := e.redis.Get(ctx, e.leaderKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.log.WithError(err).Debug("Failed to check lock owner")
		}

		return false
	}

	if owner != e.instanceID {
		return false
	}

	if err := e.redis.Expire(ctx, e.leaderKey, e.leaseTTL).Err(); err != nil {
		e.log.WithError(err).Warn("Failed to renew leader lease")
		return false
	}

	return true
}

func (e *elector) relinquish(ctx context.Context) {
	if !e.IsLeader() {
		return
	}

	owner, err := e.redis.Get(ctx, e.leaderKey).Result()
	if err == nil && owner == e.instanceID {
		if err := e.redis.Del(ctx, e.leaderKey).Err(); err != nil {
			e.log.WithError(err).Warn("Failed to delete leader lock")
		}
	}

	e.setLeader(false)
}

func (e *elector) setLeader(isLeader bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.isLeader = isLeader
}

func (e *elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.isLeader
}

func (e *elector) WaitForLeadership(ctx context.Context) error {
	if e.IsLeader() {
		return nil
	}

	select {
	case <-e.promoted:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for leadership: %w", ctx.Err())
	case <-e.done:
		return ErrElectorStopped
	}
}

var _ LeaderElector = (*elector)(nil)
