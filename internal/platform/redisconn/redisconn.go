// Package redisconn opens a Redis client from a URL and verifies it with a ping
// so callers can fail fast.
package redisconn

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultURL = "redis://localhost:6379/0"

type Options struct {
	URL         string        // default from REDIS_URL or DefaultURL
	PingTimeout time.Duration // default 2s
}

func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.URL == "" {
		opts.URL = strings.TrimSpace(os.Getenv("REDIS_URL"))
		if opts.URL == "" {
			opts.URL = DefaultURL
		}
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 2 * time.Second
	}

	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(ro)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}
	return client, nil
}
