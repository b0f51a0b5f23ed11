package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var fixedWindowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// ScriptRunner evaluates Lua scripts; *redis.Client from the infrastructure
// package satisfies it.
type ScriptRunner interface {
	RunScript(ctx context.Context, script *goredis.Script, keys []string, args ...interface{}) (interface{}, error)
}

// RedisLimiter is a fixed-window limiter shared by every replica.
type RedisLimiter struct {
	runner  ScriptRunner
	prefix  string
	maxReqs int
	window  time.Duration
}

// NewRedisLimiter returns a limiter whose counters live under prefix.
func NewRedisLimiter(runner ScriptRunner, prefix string, maxRequests int, window time.Duration) *RedisLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "paymentsportal:rate_limit"
	}
	return &RedisLimiter{runner: runner, prefix: prefix, maxReqs: maxRequests, window: window}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	key = strings.TrimSpace(key)
	if key == "" || r.maxReqs <= 0 || r.window <= 0 {
		return Decision{Allowed: true}, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	raw, err := r.runner.RunScript(ctx, fixedWindowScript, []string{r.prefix + ":" + key}, windowMs)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	if int(count) > r.maxReqs {
		retry := time.Duration(math.Ceil(float64(ttlMs)/1000.0)) * time.Second
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Remaining: r.maxReqs - int(count)}, nil
}
