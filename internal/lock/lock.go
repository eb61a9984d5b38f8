// Package lock provides the short-TTL advisory locks used to reduce
// duplicate work during payment reconciliation and the timeout sweep.
// These locks are an optimization, not a correctness guarantee: the
// database row locks taken inside the transaction remain the safety net,
// and every lock expires on its own if a holder dies.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is a best-effort mutual-exclusion token with a TTL.  TryAcquire
// never blocks: ok=false means someone else holds the key and the caller
// should treat the work as already in progress.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// RedisLocker implements Locker with SET NX PX and a token-checked
// release so a slow holder cannot free a lock that has already expired
// and been re-acquired by someone else.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLocker returns a Locker namespaced under the given prefix.
func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// TryAcquire attempts to take the lock.  The returned token must be
// passed back to Release.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token, err := randomToken(16)
	if err != nil {
		return "", false, err
	}
	ok, err := l.rdb.SetNX(ctx, l.prefix+":"+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if it is still held under the given token.
// Releasing an expired or re-acquired lock is a no-op.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, token).Err()
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
