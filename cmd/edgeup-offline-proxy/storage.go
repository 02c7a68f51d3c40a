package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/edgeup-ai/offline-router/pkg/cache"
	"github.com/edgeup-ai/offline-router/pkg/config"
	"github.com/edgeup-ai/offline-router/pkg/logging"
)

func openStorage(ctx context.Context, cfg config.Config) (cache.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		return cache.NewRedisStorage(client, cache.DefaultRedisPrefix, logging.NewLogger("cache-redis")), nil

	case config.BackendSQLite:
		storage, err := cache.OpenSQLiteStorage(cfg.SQLitePath, logging.NewLogger("cache-sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return storage, nil

	default:
		return cache.NewMemoryStorage(), nil
	}
}
