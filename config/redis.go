package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Maxapelquist/preparty-social-hub/services/redis"
)

// ConnectRedis opens the Redis client used by the change feed and the game
// answer log.
func ConnectRedis(ctx context.Context, cfg RedisConfig, log *slog.Logger) (*redis.RedisClient, error) {
	redisClient, err := redis.InitRedis(ctx, cfg.URL, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.URL, err)
	}
	return redisClient, nil
}
