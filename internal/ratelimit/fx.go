package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invois/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(NewLimiter),
)

// NewLimiter returns the redis-backed bucket when redis is configured, the
// in-process bucket otherwise.
func NewLimiter(cfg config.Config, log *zap.Logger) Limiter {
	if cfg.RedisAddr == "" {
		log.Named("ratelimit").Info("redis not configured, using in-process token bucket")
		return NewLocalBucket()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewTokenBucket(client)
}
