package dedup

import (
	"context"
	"fmt"
	"time"

	"marketagg/internal/apperr"
	"marketagg/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const windowTTL = 60 * time.Second

// redisCommands is the slice of *goredis.Client this package depends on.
// Narrowing to an interface lets tests substitute a fake backend built
// from goredis's own Cmd types (SetVal/SetErr), without needing a live
// Redis server, while production code still passes a real *goredis.Client.
type redisCommands interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *goredis.IntCmd
	TTL(ctx context.Context, key string) *goredis.DurationCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// RedisDeduplicator implements Deduplicator against a Redis SET per
// minute bucket: dedup:<YYYYMMDDHHMM>. The bucket's 60s expiry is armed
// only on the transition from absent to present (no TTL yet set), not
// on every distinct member added, so a continuously-busy bucket still
// expires 60s after it was first created.
type RedisDeduplicator struct {
	client redisCommands
}

func NewRedisDeduplicator(client *goredis.Client) *RedisDeduplicator {
	return &RedisDeduplicator{client: client}
}

func (d *RedisDeduplicator) IsUnique(ctx context.Context, tick model.NormalizedTick) (bool, error) {
	bucketKey := "dedup:" + tick.EventTS.UTC().Format("200601021504")

	added, err := d.client.SAdd(ctx, bucketKey, tick.DedupKey()).Result()
	if err != nil {
		if apperr.IsCanceled(ctx, err) {
			return false, err
		}
		return false, apperr.NewTransientBackendError("redis", fmt.Errorf("SADD %s: %w", bucketKey, err))
	}

	ttl, err := d.client.TTL(ctx, bucketKey).Result()
	if err != nil {
		if apperr.IsCanceled(ctx, err) {
			return added == 1, err
		}
		return added == 1, apperr.NewTransientBackendError("redis", fmt.Errorf("TTL %s: %w", bucketKey, err))
	}

	// TTL returns -1 when the key exists but carries no expiry: that's
	// the bucket's first-ever insert (or a prior EXPIRE attempt failed).
	// Arm it exactly once, not on every subsequent distinct member.
	if ttl < 0 {
		if err := d.client.Expire(ctx, bucketKey, windowTTL).Err(); err != nil && !apperr.IsCanceled(ctx, err) {
			return added == 1, apperr.NewTransientBackendError("redis", fmt.Errorf("EXPIRE %s: %w", bucketKey, err))
		}
	}

	return added == 1, nil
}
