package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

// Redis is a Locker backed by redislock, shared by every instance that talks
// to the same Redis.
type Redis struct {
	client     *redislock.Client
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
	logger     logrus.FieldLogger
}

// NewRedis wraps a redislock client. Locks live for ttl and are refreshed at
// ttl/2 while held.
func NewRedis(client redislock.RedisClient, prefix string, ttl time.Duration, logger logrus.FieldLogger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{
		client:     redislock.New(client),
		prefix:     prefix,
		ttl:        ttl,
		retryEvery: 100 * time.Millisecond,
		logger:     logger.WithField("component", "lock.redis"),
	}
}

var _ port.Locker = (*Redis)(nil)

// Acquire obtains key, retrying until ctx is done. Without a ctx deadline the
// attempt gives up after one ttl.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	name := r.prefix + key
	l, err := r.client.Obtain(ctx, name, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.retryEvery),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %q: %w", key, domain.ErrLockNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", key, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.keepAlive(l, name, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.logger.WithError(err).WithField("key", name).Warn("releasing lock failed")
			}
		})
	}, nil
}

func (r *Redis) keepAlive(l *redislock.Lock, name string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/2)
			err := l.Refresh(ctx, r.ttl, nil)
			cancel()
			if err != nil {
				r.logger.WithError(err).WithField("key", name).Warn("refreshing lock failed")
				return
			}
		}
	}
}
