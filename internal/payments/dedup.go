package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sigPrefixLen is how much of the base64 signature goes into the dedup
// key. Distinct provider payloads for the same order (a status change)
// produce a different signature, so the pair stays unique per payload.
const sigPrefixLen = 16

// Deduper remembers recently seen notifications so replays within the
// window are flagged before they reach the database.
type Deduper interface {
	Seen(ctx context.Context, orderID, signature string) (bool, error)
}

// RedisDeduper marks notifications with SETNX under a fixed TTL.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDeduper returns a Deduper with a one hour window by default.
func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// Seen records the notification and reports whether it was already
// recorded within the window.
func (d *RedisDeduper) Seen(ctx context.Context, orderID, signature string) (bool, error) {
	prefix := signature
	if len(prefix) > sigPrefixLen {
		prefix = prefix[:sigPrefixLen]
	}
	key := fmt.Sprintf("payments:dedup:%s:%s", orderID, prefix)
	created, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

var fixedWindowScript = redis.NewScript(`
    local n = redis.call('INCR', KEYS[1])
    if n == 1 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
    end
    return n
`)

// PullLimiter bounds how often the provider's status API may be hit for
// a single order.
type PullLimiter interface {
	Allow(ctx context.Context, orderID string) (bool, error)
}

// RedisPullLimiter counts calls per order in a fixed window.
type RedisPullLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// NewRedisPullLimiter defaults to 6 calls per minute per order.
func NewRedisPullLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisPullLimiter {
	if limit <= 0 {
		limit = 6
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisPullLimiter{rdb: rdb, limit: limit, window: window}
}

// Allow consumes one call from the order's window.
func (l *RedisPullLimiter) Allow(ctx context.Context, orderID string) (bool, error) {
	key := "payments:pull:" + orderID
	n, err := fixedWindowScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(l.limit), nil
}

// StatusCache keeps freshly pulled statuses for a short period so bursts
// of "is it paid yet" requests do not each hit the provider.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (*CheckResult, bool, error)
	Put(ctx context.Context, orderID string, res *CheckResult) error
}

// RedisStatusCache stores CheckResults as JSON under a short TTL.
type RedisStatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStatusCache defaults to a 15 second TTL.
func NewRedisStatusCache(rdb *redis.Client, ttl time.Duration) *RedisStatusCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisStatusCache{rdb: rdb, ttl: ttl}
}

func (c *RedisStatusCache) Get(ctx context.Context, orderID string) (*CheckResult, bool, error) {
	raw, err := c.rdb.Get(ctx, "payments:status:"+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res CheckResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, nil
	}
	return &res, true, nil
}

func (c *RedisStatusCache) Put(ctx context.Context, orderID string, res *CheckResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, "payments:status:"+orderID, raw, c.ttl).Err()
}
