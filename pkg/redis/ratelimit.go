package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// slidingWindowScript admits a request when fewer than ARGV[3] requests
// were admitted in the last ARGV[4] ms. Returns {allowed, remaining}.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, window_ms)
	return {1, limit - count - 1}
end
return {0, 0}
`

// RateLimiter is a sliding-window limiter shared by every API process
// ⭐ SSOT: 프로세스 간 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
}

// Window is the number of requests allowed per period
type Window struct {
	Limit  int
	Period time.Duration
}

// NewRateLimiter creates a limiter under the given key prefix
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Key returns the Redis key for a limiter bucket
func (r *RateLimiter) Key(bucket string) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, bucket)
}

// Allow checks and records one request for bucket.
// Returns (allowed, remaining, error). With Redis disabled every request is allowed.
func (r *RateLimiter) Allow(ctx context.Context, bucket string, w Window) (bool, int, error) {
	if !r.client.Enabled() {
		return true, w.Limit, nil
	}

	now := r.now()
	nowMs := now.UnixMilli()

	result, err := r.client.Redis().Eval(ctx, slidingWindowScript,
		[]string{r.Key(bucket)},
		nowMs,
		nowMs-w.Period.Milliseconds(),
		w.Limit,
		w.Period.Milliseconds(),
		strconv.FormatInt(now.UnixNano(), 10),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected reply %v", result)
	}

	allowed, _ := result[0].(int64)
	remaining, _ := result[1].(int64)
	return allowed == 1, int(remaining), nil
}
