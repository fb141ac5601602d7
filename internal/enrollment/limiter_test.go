package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisLimiterCountsPerKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, 2, time.Minute)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "203.0.113.30").Allowed)
	second := limiter.Allow(ctx, "203.0.113.30")
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)
	assert.False(t, limiter.Allow(ctx, "203.0.113.30").Allowed)
	assert.True(t, limiter.Allow(ctx, "203.0.113.31").Allowed)

	mr.FastForward(2 * time.Minute)
	assert.True(t, limiter.Allow(ctx, "203.0.113.30").Allowed)
}

func TestRedisLimiterFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	limiter := NewRedisLimiter(client, 1, time.Minute)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "203.0.113.32").Allowed)
	assert.False(t, limiter.Allow(ctx, "203.0.113.32").Allowed)
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "k").Allowed)
	assert.False(t, limiter.Allow(ctx, "k").Allowed)

	now = now.Add(61 * time.Second)
	assert.True(t, limiter.Allow(ctx, "k").Allowed)
}

func TestRedisLimiterStartsWindowOnFirstAttempt(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()

	before := time.Now().UTC()
	first := limiter.Allow(ctx, "203.0.113.33")
	assert.Equal(t, 1, first.Count)
	assert.Equal(t, time.Minute, mr.TTL("enroll:203.0.113.33"))
	assert.WithinDuration(t, before.Add(time.Minute), first.ResetAt, 5*time.Second)

	mr.FastForward(30 * time.Second)
	second := limiter.Allow(ctx, "203.0.113.33")
	assert.Equal(t, 2, second.Count)
	assert.Equal(t, 30*time.Second, mr.TTL("enroll:203.0.113.33"))
}
