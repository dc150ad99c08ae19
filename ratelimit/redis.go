package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter shared by every API instance.
type Redis struct {
	client redis.UniversalClient
	prefix string
	rule   Rule
}

func NewRedis(client redis.UniversalClient, prefix string, rule Rule) *Redis {
	return &Redis{client: client, prefix: prefix, rule: rule}
}

func (r *Redis) key(k string) string {
	return fmt.Sprintf("%s:%s", r.prefix, k)
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := r.key(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, r.rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit: incr %s: %w", redisKey, err)
	}

	if incr.Val() <= int64(r.rule.Limit) {
		return Result{Allowed: true}, nil
	}
	ttl, err := r.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: pttl %s: %w", redisKey, err)
	}
	if ttl <= 0 {
		ttl = r.rule.Window
	}
	return Result{Allowed: false, RetryAfter: ttl}, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
