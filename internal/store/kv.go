// Package store implements the key and config data-access layer on top of
// the hosted hash-map store.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the slice of the hosted store this system relies on: hash
// upsert/read, delete, prefix scan, and a conditional write used to close
// check-then-act races.
type KV interface {
	HashSet(ctx context.Context, id string, fields map[string]any) error
	HashGetAll(ctx context.Context, id string) (map[string]string, error)
	Delete(ctx context.Context, id string) (int64, error)
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
	SetIfAbsent(ctx context.Context, id, value string, ttl time.Duration) (bool, error)
	GetString(ctx context.Context, id string) (string, bool, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type redisKV struct {
	client *redis.Client
}

// NewRedisKV wraps a connected Redis client as a KV.
func NewRedisKV(client *redis.Client) KV {
	return &redisKV{client: client}
}

func (r *redisKV) HashSet(ctx context.Context, id string, fields map[string]any) error {
	return r.client.HSet(ctx, id, fields).Err()
}

func (r *redisKV) HashGetAll(ctx context.Context, id string) (map[string]string, error) {
	return r.client.HGetAll(ctx, id).Result()
}

func (r *redisKV) Delete(ctx context.Context, id string) (int64, error) {
	return r.client.Del(ctx, id).Result()
}

func (r *redisKV) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		ids = append(ids, batch...)
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

func (r *redisKV) SetIfAbsent(ctx context.Context, id, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, id, value, ttl).Result()
}

func (r *redisKV) GetString(ctx context.Context, id string) (string, bool, error) {
	v, err := r.client.Get(ctx, id).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *redisKV) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, id).Result()
	return n > 0, err
}
