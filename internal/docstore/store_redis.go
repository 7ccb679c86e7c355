package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tradegate/pkg/platform/sentinel"
)

const (
	redisKeyPrefix       = "doc:"
	defaultMergeAttempts = 5
)

// RedisStore keeps each document as a JSON string. Merges use WATCH/MULTI so
// concurrent writers to the same document never interleave.
type RedisStore struct {
	client        *redis.Client
	mergeAttempts int
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithMergeAttempts bounds optimistic-lock retries for merge writes.
func WithMergeAttempts(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.mergeAttempts = n
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, mergeAttempts: defaultMergeAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func redisKey(collection, key string) string {
	return redisKeyPrefix + collection + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) (Document, error) {
	raw, err := s.client.Get(ctx, redisKey(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w: %w", collection, key, sentinel.ErrUnavailable, err)
	}
	return decodeDocument(raw)
}

func (s *RedisStore) Set(ctx context.Context, collection, key string, fields Document, opts SetOptions) error {
	k := redisKey(collection, key)
	if !opts.Merge {
		payload, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		if err := s.client.Set(ctx, k, payload, 0).Err(); err != nil {
			return fmt.Errorf("set document %s/%s: %w: %w", collection, key, sentinel.ErrUnavailable, err)
		}
		return nil
	}

	for attempt := 0; attempt < s.mergeAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			var current Document
			raw, err := tx.Get(ctx, k).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				if current, err = decodeDocument(raw); err != nil {
					return err
				}
			}

			payload, err := json.Marshal(apply(current, fields, opts))
			if err != nil {
				return fmt.Errorf("encode document: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, payload, 0)
				return nil
			})
			return err
		}, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return err
		}
		if err != nil {
			return fmt.Errorf("merge document %s/%s: %w: %w", collection, key, sentinel.ErrUnavailable, err)
		}
		return nil
	}
	return fmt.Errorf("merge document %s/%s: %w", collection, key, sentinel.ErrConflict)
}

func decodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w: %w", sentinel.ErrInvalidState, err)
	}
	return doc, nil
}
