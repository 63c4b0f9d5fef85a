package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis connects to Redis. An empty URL returns a nil client and no error.
func NewRedis(ctx context.Context, redisURL string, log *zap.Logger) (*redis.Client, error) {
	if redisURL == "" {
		log.Info("REDIS_URL not set, price cache stays in process")
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("Redis connected", zap.String("addr", opts.Addr))
	return client, nil
}
