package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisClient handles Redis operations
type RedisClient struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(addr string, db int, log *slog.Logger) (*RedisClient, error) {
	var client *redis.Client
	if strings.Contains(addr, "://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		})
	}
	return &RedisClient{client: client, log: log.With(slog.String("component", "redis"))}, nil
}

// InitRedis creates the client and checks the connection
func InitRedis(ctx context.Context, addr string, db int, log *slog.Logger) (*RedisClient, error) {
	rc, err := NewRedisClient(addr, db, log)
	if err != nil {
		return nil, err
	}

	if err := rc.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	rc.log.Info("connected", slog.String("address", addr))
	return rc, nil
}

// CloseRedis gracefully closes the Redis connection
func CloseRedis(rc *RedisClient) error {
	if err := rc.client.Close(); err != nil {
		return fmt.Errorf("error closing Redis connection: %w", err)
	}
	return nil
}

// CleanupKeys removes the specified keys from Redis
func (rc *RedisClient) CleanupKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := rc.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to cleanup Redis keys %v: %w", keys, err)
	}
	return nil
}
