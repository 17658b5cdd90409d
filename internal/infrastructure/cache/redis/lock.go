package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraud-ledger/internal/pkg/lock"
)

// Locker is a lock.Locker shared between processes through Redis. Each
// grant is a key holding a random token; the key expires after the TTL
// unless the holder keeps extending it.
type Locker struct {
	client *Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewLocker creates a new Redis-backed locker
func NewLocker(client *Client, prefix string, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Locker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		logger: logger.Named("lock"),
	}
}

// Lock blocks until name is acquired or ctx is done
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := l.prefix + name
	token := uuid.NewString()

	for {
		ok, err := l.client.Claim(ctx, key, token, l.ttl)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return l.hold(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", lock.ErrNotAcquired, name, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

// hold keeps the key alive until the returned release function runs
func (l *Locker) hold(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
				held, err := l.client.Extend(ctx, key, token, l.ttl)
				cancel()
				if err != nil {
					l.logger.Warn("failed to extend lock", zap.String("key", key), zap.Error(err))
				} else if !held {
					l.logger.Warn("lock lost before release", zap.String("key", key))
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := l.client.Release(ctx, key, token); err != nil {
				l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
}
