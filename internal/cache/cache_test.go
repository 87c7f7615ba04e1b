package cache

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

func newRedisTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(rdb)
	t.Cleanup(func() {
		_ = c.Close()
		mr.Close()
	})
	return c, mr
}

func backends(t *testing.T) map[string]Backend {
	rc, _ := newRedisTestCache(t)
	mc := NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return map[string]Backend{"redis": rc, "memory": mc}
}

func TestBackendSetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := New(b)

			_, err := c.Get(ctx, "otp:a@b.com")
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, c.Set(ctx, "otp:a@b.com", "012345", time.Minute))
			got, err := c.Get(ctx, "otp:a@b.com")
			require.NoError(t, err)
			assert.Equal(t, "012345", got)

			removed, err := c.Delete(ctx, "otp:a@b.com")
			require.NoError(t, err)
			assert.True(t, removed)

			removed, err = c.Delete(ctx, "otp:a@b.com")
			require.NoError(t, err)
			assert.False(t, removed, "second delete must be a no-op")

			_, err = c.Get(ctx, "otp:a@b.com")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestRedisCacheExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisTestCache(t)

	require.NoError(t, c.Set(ctx, "k", "v", 300*time.Second))
	assert.Equal(t, 300*time.Second, mr.TTL("k"))

	mr.FastForward(301 * time.Second)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCacheTimerEvicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache()
	defer m.Close()

	require.NoError(t, m.Set(ctx, "k", "v", 20*time.Millisecond))
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCacheGetTreatsExpiredAsMiss(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache()
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Set(ctx, "k", "v", time.Hour))

	m.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Zero(t, m.Len())
}

func TestMemoryCacheStaleTimerDoesNotEvictRewrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache()
	defer m.Close()

	require.NoError(t, m.Set(ctx, "k", "old", 20*time.Millisecond))
	require.NoError(t, m.Set(ctx, "k", "new", time.Hour))

	time.Sleep(60 * time.Millisecond)
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestMemoryCacheDeleteRacingEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache()
	defer m.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, m.Set(ctx, "k", "v", time.Millisecond))
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = m.Delete(ctx, "k")
			}()
		}
		wg.Wait()
	}
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, m.Len())
}

func TestConcurrentDeleteHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Set(ctx, "k", "v", time.Minute))

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					removed, err := b.Delete(ctx, "k")
					assert.NoError(t, err)
					if removed {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func TestCacheClampsTTLToOneSecond(t *testing.T) {
	ctx := context.Background()
	rc, mr := newRedisTestCache(t)
	c := New(rc)

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	assert.Equal(t, time.Second, mr.TTL("k"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "otp:a@b.com", OTPKey("a@b.com"))
	assert.Equal(t, "user:a@b.com", UserKey("a@b.com"))
}
