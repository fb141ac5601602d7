package enrollment

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one attempt against the limiter.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts enrollment attempts per caller address.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// RedisLimiter is a fixed-window counter shared across proxy instances.
// When Redis is unreachable it falls back to a per-process window.
type RedisLimiter struct {
	Client   *redis.Client
	Limit    int
	Window   time.Duration
	Prefix   string
	Fallback *MemoryLimiter
}

// NewRedisLimiter builds a limiter allowing limit attempts per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if limit <= 0 {
		limit = 5
	}
	return &RedisLimiter{
		Client:   client,
		Limit:    limit,
		Window:   window,
		Prefix:   "enroll:",
		Fallback: NewMemoryLimiter(limit, window),
	}
}

// Allow counts one attempt for key. Counting happens in Redis when it
// answers and in the process-local window otherwise.
func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	if l.Client != nil {
		count, ttl, err := l.hit(ctx, l.Prefix+key)
		if err == nil {
			return decide(int(count), l.Limit, time.Now().UTC().Add(ttl))
		}
	}
	return l.Fallback.Allow(ctx, key)
}

// hit increments the counter and starts its window on first use.
func (l *RedisLimiter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	ttl := pttl.Val()
	if ttl < 0 {
		if err := l.Client.PExpire(ctx, key, l.Window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = l.Window
	}
	return incr.Val(), ttl, nil
}

// MemoryLimiter is a per-process fixed-window counter.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	items  map[string]window
	now    func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter builds an in-process limiter.
func NewMemoryLimiter(limit int, w time.Duration) *MemoryLimiter {
	if w <= 0 {
		w = 10 * time.Minute
	}
	if limit <= 0 {
		limit = 5
	}
	return &MemoryLimiter{
		limit:  limit,
		window: w,
		items:  make(map[string]window),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range l.items {
		if now.After(v.resetAt) {
			delete(l.items, k)
		}
	}
	curr, ok := l.items[key]
	if !ok {
		curr = window{resetAt: now.Add(l.window)}
	}
	curr.count++
	l.items[key] = curr
	return decide(curr.count, l.limit, curr.resetAt)
}

func decide(count, limit int, resetAt time.Time) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
