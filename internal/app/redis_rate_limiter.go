package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding-window counter: each attempt is a ZSET member scored with its
// timestamp, expired members are pruned on every call, and the attempt is
// only recorded while the subject is under the limit. Unlike a fixed window
// this cannot be gamed by bursting across a window boundary, and a denied
// attempt does not extend the penalty.
var rateLimitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, now - window)
local count = redis.call("ZCARD", KEYS[1])
if count < limit then
  redis.call("ZADD", KEYS[1], now, ARGV[4])
  redis.call("PEXPIRE", KEYS[1], window)
  return {count + 1, 0}
end
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
local retry = window
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
if retry < 0 then
  retry = 0
end
return {count + 1, retry}
`)

// RedisRateLimiter implements distributed per-user rate limiting using Redis.
// Funding initiations and purchases each get their own scope so one cannot
// starve the other.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "dataflare:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisRateLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

// ConsumeRateLimit counts one attempt for (scope, subject) inside a sliding
// window and reports the attempted count plus, when the subject is over the
// limit, how long until the oldest counted attempt ages out. A nil limiter or
// missing client degrades to unlimited: rate limiting is a guard rail, never
// a point of failure for money movement.
func (r *RedisRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	normalizedScope := strings.TrimSpace(scope)
	normalizedSubject := strings.TrimSpace(subject)
	if normalizedScope == "" || normalizedSubject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	nowMs := time.Now().UnixMilli()
	// The member only has to be unique within the window; a uuid fragment
	// disambiguates attempts that land on the same millisecond.
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString()[:8])

	key := fmt.Sprintf("%s:%s:%s", r.prefix, normalizedScope, normalizedSubject)
	rawResult, err := rateLimitScript.Run(ctx, r.client, []string{key}, nowMs, windowMs, limit, member).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	retryMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected redis limiter retry type: %T", values[1])
	}

	retryAfter := 0
	if int(currentCount) > limit {
		retryAfter = int(math.Ceil(float64(retryMs) / 1000.0))
		if retryAfter < 1 {
			retryAfter = 1
		}
	}

	return int(currentCount), retryAfter, nil
}
