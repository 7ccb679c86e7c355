package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tradegate/pkg/platform/sentinel"
)

const defaultRedisPrefix = "tradegate:session:"

// Redis keeps the session slot in a shared Redis so several server replicas
// restore the same session.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return v, true, nil
}

func (r *Redis) Save(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("clear %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	return nil
}
