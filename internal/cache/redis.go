package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores JSON values under versioned keys. Purge bumps the version so
// every process sharing the server stops seeing old entries at once; the
// stale keys then expire on their own.
type Redis[T any] struct {
	client     *redis.Client
	prefix     string
	versionKey string
	ttl        time.Duration
}

func NewRedis[T any](client *redis.Client, prefix string, ttl time.Duration) *Redis[T] {
	return &Redis[T]{
		client:     client,
		prefix:     prefix,
		versionKey: prefix + ":version",
		ttl:        ttl,
	}
}

func (r *Redis[T]) version(ctx context.Context) (int64, error) {
	ver, err := r.client.Get(ctx, r.versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := r.client.SetNX(ctx, r.versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return r.client.Get(ctx, r.versionKey).Int64()
	}
	return ver, err
}

func (r *Redis[T]) key(ctx context.Context, key string) (string, error) {
	ver, err := r.Version(ctx)
	if err != nil {
		return "", err
	}
	return r.keyAt(ver, key), nil
}

func (r *Redis[T]) keyAt(ver int64, key string) string {
	return fmt.Sprintf("%s:%s:%d", r.prefix, key, ver)
}

// Version is the generation entries are currently read under.
func (r *Redis[T]) Version(ctx context.Context) (int64, error) {
	ver, err := r.version(ctx)
	if err != nil {
		return 0, fmt.Errorf("read cache version: %w", err)
	}
	return ver, nil
}

func (r *Redis[T]) Load(ctx context.Context, key string) (T, bool, error) {
	var zero T
	k, err := r.key(ctx, key)
	if err != nil {
		return zero, false, err
	}
	payload, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis[T]) Save(ctx context.Context, key string, value T) error {
	ver, err := r.Version(ctx)
	if err != nil {
		return err
	}
	return r.SaveAt(ctx, ver, key, value)
}

// SaveAt writes value under version ver. After a Purge that version is
// retired, so the write is invisible to every reader.
func (r *Redis[T]) SaveAt(ctx context.Context, ver int64, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, r.keyAt(ver, key), raw, r.ttl).Err()
}

func (r *Redis[T]) Purge(ctx context.Context) error {
	return r.client.Incr(ctx, r.versionKey).Err()
}
