package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Driver  string // redis or memory
	URL     string
	Timeout time.Duration
}

// ConfigFromEnv reads cache config from environment variables
func ConfigFromEnv() Config {
	driver := os.Getenv("CACHE_DRIVER")
	if driver == "" {
		driver = "redis"
	}
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	return Config{Driver: driver, URL: url, Timeout: 5 * time.Second}
}

// Connect opens a redis client and verifies connectivity with a ping
func Connect(cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
