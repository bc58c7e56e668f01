package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_WithAccountLocks(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker, err := NewRedisLocker(client, DefaultOptions(), nil)
	require.NoError(t, err)

	executed := false
	err = locker.WithAccountLocks(context.Background(), []string{"B", "A"}, func(context.Context) error {
		executed = true
		assert.True(t, mr.Exists(AccountKey("A")))
		assert.True(t, mr.Exists(AccountKey("B")))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, executed)
	assert.False(t, mr.Exists(AccountKey("A")), "lock should be released")
	assert.False(t, mr.Exists(AccountKey("B")), "lock should be released")
}

func TestRedisLocker_SerializesSameAccount(t *testing.T) {
	_, client := setupTestRedis(t)
	locker, err := NewRedisLocker(client, Options{Expiry: 5 * time.Second, Tries: 200, RetryDelay: 5 * time.Millisecond, DriftFactor: 0.01}, nil)
	require.NoError(t, err)

	balance := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithAccountLocks(context.Background(), []string{"A"}, func(context.Context) error {
				v := balance
				time.Sleep(2 * time.Millisecond)
				balance = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, balance)
}

func TestRedisLocker_TryLock(t *testing.T) {
	_, client := setupTestRedis(t)
	first, err := NewRedisLocker(client, DefaultOptions(), nil)
	require.NoError(t, err)
	second, err := NewRedisLocker(client, DefaultOptions(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	release, ok, err := first.TryLock(ctx, SweepKey)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx, SweepKey)
	require.NoError(t, err)
	assert.False(t, ok, "second replica must not acquire a held sweep lock")

	release()
	release2, ok, err := second.TryLock(ctx, SweepKey)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedisLocker_TryLockOutlivesAccountExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	opts := DefaultOptions()
	opts.Expiry = 50 * time.Millisecond
	opts.GuardExpiry = 300 * time.Millisecond
	locker, err := NewRedisLocker(client, opts, nil)
	require.NoError(t, err)

	release, ok, err := locker.TryLock(context.Background(), SweepKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, mr.TTL(SweepKey), opts.Expiry, "guard uses its own expiry")

	// Expiry of the key only moves with FastForward; the refresh loop runs on wall time.
	mr.FastForward(250 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL(SweepKey) > 200*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond, "held guard is extended")

	release()
	release()
	assert.False(t, mr.Exists(SweepKey))
}

func TestNewRedisLocker_Validation(t *testing.T) {
	_, err := NewRedisLocker(nil, DefaultOptions(), nil)
	assert.Error(t, err)

	_, client := setupTestRedis(t)
	_, err = NewRedisLocker(client, Options{}, nil)
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "://bad")
	assert.Error(t, err)
}
