package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] is the current bucket, KEYS[2] the previous one.
// ARGV: window ms, elapsed ms into the current bucket, limit.
var allowScript = redis.NewScript(`
local window = tonumber(ARGV[1])
local elapsed = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local curr = tonumber(redis.call("GET", KEYS[1]) or "0")
local prev = tonumber(redis.call("GET", KEYS[2]) or "0")
local rate = math.floor(prev * (window - elapsed) / window + curr + 0.5)
if rate >= limit then
  return {0, rate}
end
redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], window * 2)
return {1, rate}
`)

// RedisLimiter shares sliding-window counters between instances through Redis.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration) *RedisLimiter {
	if window < time.Millisecond {
		window = time.Minute
	}
	return &RedisLimiter{client: client, prefix: "odyssey:ratelimit:", max: limit, window: window, now: time.Now}
}

func (r *RedisLimiter) bucketKey(key string, start time.Time) string {
	return r.prefix + key + ":" + strconv.FormatInt(start.UnixMilli(), 10)
}

// Allow implements Limiter.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if r.max <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := r.now().UTC()
	current := now.Truncate(r.window)
	previous := current.Add(-r.window)
	keys := []string{r.bucketKey(key, current), r.bucketKey(key, previous)}
	args := []any{r.window.Milliseconds(), now.Sub(current).Milliseconds(), r.max}

	result, err := allowScript.Run(ctx, r.client, keys, args...).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return Decision{}, errors.New("ratelimit: unexpected redis response")
	}
	allowed, ok1 := values[0].(int64)
	rate, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return Decision{}, errors.New("ratelimit: invalid redis counter")
	}
	d := Decision{Allowed: allowed == 1, Limit: r.max, ResetAt: current.Add(r.window)}
	if d.Allowed {
		d.Remaining = r.max - int(rate) - 1
	}
	return d, nil
}

var _ Limiter = (*RedisLimiter)(nil)
