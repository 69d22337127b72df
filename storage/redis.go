package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"hbot-hub/config"
)

// NewRedisClient verbindet den optionalen Place-Details-Cache. Ohne
// REDIS_ADDR gibt es keinen Cache (nil), das Enrichment läuft dann
// ungecacht gegen die Places-API.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
