package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a Limiter backed by Redis, for deployments running more
// than one API instance. Keys are namespaced under "rl:".
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// minIntervalScript allows the call if the key is absent or its stored
// timestamp is at least interval old, refreshing the timestamp on success.
// Done in Lua so two racing calls cannot both pass.
var minIntervalScript = redis.NewScript(`
local last = redis.call("GET", KEYS[1])
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
if last and (now - tonumber(last)) < interval then
	return 0
end
redis.call("SET", KEYS[1], now, "PX", interval * 2)
return 1
`)

func (rl *RedisLimiter) AllowMinInterval(ctx context.Context, key string, interval time.Duration) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := minIntervalScript.Run(ctx, rl.client,
		[]string{"rl:min:" + key}, now, interval.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("min interval check failed: %w", err)
	}
	return res == 1, nil
}

// slidingScript prunes events older than the window, then admits the call if
// fewer than limit remain.
var slidingScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, now - window)
if redis.call("ZCARD", KEYS[1]) >= limit then
	return 0
end
redis.call("ZADD", KEYS[1], now, now .. "-" .. ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`)

func (rl *RedisLimiter) AllowSliding(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	res, err := slidingScript.Run(ctx, rl.client,
		[]string{"rl:win:" + key},
		now.UnixMilli(), window.Milliseconds(), limit, now.UnixNano()).Int()
	if err != nil {
		return false, fmt.Errorf("sliding window check failed: %w", err)
	}
	return res == 1, nil
}

func (rl *RedisLimiter) AllowFixed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	windowStart := time.Now().Truncate(window).UnixMilli()
	redisKey := fmt.Sprintf("rl:fix:%s:%d", key, windowStart)

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("fixed window check failed: %w", err)
	}
	if count == 1 {
		// First hit in this window owns setting the expiry.
		rl.client.PExpire(ctx, redisKey, window)
	}
	if count > int64(limit) {
		return false, nil
	}
	return true, nil
}
