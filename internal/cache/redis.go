package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis adapts a go-redis client to the Cache interface. Every call
// swallows transport errors per spec.md §4.7/§7 "Cache failure": a log
// line is emitted at debug level (this is expected, steady-state
// behavior when Redis is briefly unavailable, not an operator-visible
// warning) and the degraded value (empty/false, or a no-op) is returned.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedis wraps client for use as the pipeline's Cache.
func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{client: client, log: log}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Debug("cache get failed, degrading to miss", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Debug("cache set failed, dropping write", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Del(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Debug("cache del failed", zap.String("key", key), zap.Error(err))
	}
}

var _ Cache = (*Redis)(nil)
