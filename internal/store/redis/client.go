// Package redis holds the Redis client construction and resilience
// helpers shared by the dedup backend and repository writers.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// ClientConfig configures the shared Redis connection.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient dials Redis and pings it once so misconfiguration fails
// fast at startup instead of on the first dedup lookup.
func NewClient(cfg ClientConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}
