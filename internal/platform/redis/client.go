package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tradegate/internal/platform/config"
)

// Client is the shared go-redis client for session persistence and the
// redis document store.
type Client struct {
	*redis.Client
}

// New connects and pings. An empty URL means redis is not configured and
// yields a nil client without error.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// options overlays pool and timeout settings on the URL. Zero values keep
// the go-redis defaults.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if d := cfg.DialTimeout.Duration; d > 0 {
		opts.DialTimeout = d
	}
	if d := cfg.ReadTimeout.Duration; d > 0 {
		opts.ReadTimeout = d
	}
	if d := cfg.WriteTimeout.Duration; d > 0 {
		opts.WriteTimeout = d
	}
	return opts, nil
}

// Health pings the server; /healthz reports it under "redis".
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
