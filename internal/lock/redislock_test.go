package lock_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lapak-id/backend-lapak/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockReleasesKeyOnReturn(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	err := locker.WithLock(ctx, "sweep:flash-sales", time.Second, func(context.Context) error {
		require.True(t, mr.Exists("sweep:flash-sales"))
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("sweep:flash-sales"), "lock must be released after the sweep returns")
}

func TestWithLockReleasesKeyWhenFnFails(t *testing.T) {
	locker, mr := newLocker(t)
	sweepErr := errors.New("sweep failed")

	err := locker.WithLock(context.Background(), "sweep:coupons", time.Second, func(context.Context) error {
		return sweepErr
	})
	require.ErrorIs(t, err, sweepErr)
	require.False(t, mr.Exists("sweep:coupons"), "a failed sweep must not leave the lock held")
}

func TestWithLockSerialisesConcurrentSweeps(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var running atomic.Int32
	var overlapped atomic.Bool
	sweep := func(context.Context) error {
		if running.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(15 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- locker.WithLock(ctx, "sweep:carts", time.Second, sweep)
		}()
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-done)
	}
	require.False(t, overlapped.Load(), "two replicas must never run the sweep at once")
}

func TestWithLockHonoursContextWhileWaiting(t *testing.T) {
	locker, mr := newLocker(t)

	// Another replica holds the lock and never lets go within the deadline.
	mr.Set("sweep:flash-sales", "other-replica")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := locker.WithLock(ctx, "sweep:flash-sales", time.Second, func(context.Context) error {
		t.Fatal("sweep must not run without the lock")
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// The competing holder's token survives the failed attempt.
	got, err := mr.Get("sweep:flash-sales")
	require.NoError(t, err)
	require.Equal(t, "other-replica", got)
}
