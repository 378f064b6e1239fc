package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carrier-engine/internal/core/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lockRetryInterval = 50 * time.Millisecond

// RedisLocker implements Locker on top of a Cache using SET NX with an owner token.
type RedisLocker struct {
	cache  Cache
	prefix string
}

// NewRedisLocker creates a locker whose keys are stored under prefix.
func NewRedisLocker(c Cache, prefix string) *RedisLocker {
	return &RedisLocker{cache: c, prefix: prefix}
}

// Acquire polls until the lock is free or ctx is done. While held, the lock's
// TTL is refreshed every ttl/3 so long bookings keep it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := []byte(uuid.NewString())

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.cache.SetNX(ctx, fullKey, token, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return l.hold(fullKey, token, ttl), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockHeld, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// hold keeps an acquired lock alive and returns its release function.
func (l *RedisLocker) hold(key string, token []byte, ttl time.Duration) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		if ttl <= 0 {
			return
		}
		ticker := time.NewTicker(max(ttl/3, lockRetryInterval))
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), ttl)
				ok, err := l.cache.ExpireIfEquals(ctx, key, token, ttl)
				cancel()
				if err != nil {
					logger.Get().Warn("Failed to extend lock", zap.String("key", key), zap.Error(err))
					continue
				}
				if !ok {
					logger.Get().Warn("Lock lost before release", zap.String("key", key))
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
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := l.cache.DeleteIfEquals(releaseCtx, key, token); err != nil {
				logger.Get().Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
}

// LocalLocker implements Locker for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

// Acquire blocks until the key is free or ctx is done. ttl is ignored.
func (l *LocalLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, slot)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockHeld, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(key, slot)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, slot *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
