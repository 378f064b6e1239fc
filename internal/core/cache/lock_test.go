package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_AcquireRelease(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	locker := NewRedisLocker(adapter, "lock:")
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "order-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:order-1"))

	waitCtx, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(waitCtx, "order-1", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	assert.False(t, mr.Exists("lock:order-1"))

	release, err = locker.Acquire(ctx, "order-1", time.Minute)
	require.NoError(t, err)
	release()
}

func TestRedisLocker_ReleaseDoesNotStealForeignLock(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	locker := NewRedisLocker(adapter, "lock:")

	release, err := locker.Acquire(context.Background(), "order-2", time.Second)
	require.NoError(t, err)

	// The lock expires and somebody else takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:order-2", "someone-else"))

	release()
	got, err := mr.Get("lock:order-2")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_ExtendsTTLWhileHeld(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	locker := NewRedisLocker(adapter, "lock:")

	release, err := locker.Acquire(context.Background(), "order-3", 300*time.Millisecond)
	require.NoError(t, err)

	// Most of the TTL is gone; the holder is still working.
	mr.FastForward(250 * time.Millisecond)
	require.True(t, mr.Exists("lock:order-3"))

	assert.Eventually(t, func() bool {
		return mr.TTL("lock:order-3") == 300*time.Millisecond
	}, time.Second, 10*time.Millisecond)

	mr.FastForward(250 * time.Millisecond)
	assert.True(t, mr.Exists("lock:order-3"))

	release()
	assert.False(t, mr.Exists("lock:order-3"))
	release()
}

func TestRedisLocker_StopsExtendingLostLock(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	locker := NewRedisLocker(adapter, "lock:")

	release, err := locker.Acquire(context.Background(), "order-4", 150*time.Millisecond)
	require.NoError(t, err)
	defer release()

	require.NoError(t, mr.Set("lock:order-4", "someone-else"))
	mr.SetTTL("lock:order-4", time.Second)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, time.Second, mr.TTL("lock:order-4"))
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "order-1", 0)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.slots)
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "k", 0)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	r1, err := locker.Acquire(ctx, "a", 0)
	require.NoError(t, err)
	r2, err := locker.Acquire(ctx, "b", 0)
	require.NoError(t, err)

	r1()
	r2()
	r1()
}
