package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ldtran/home-inventory/internal/core/domain"
)

const snapshotKey = "inventory:snapshot"

// RedisCache stores the whole-collection snapshot as one JSON blob under
// a single key. The TTL bounds how stale a display read can get if an
// invalidation is ever missed.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context) (domain.Collection, bool, error) {
	data, err := r.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var coll domain.Collection
	if err := json.Unmarshal(data, &coll); err != nil {
		// A snapshot we cannot decode is as good as no snapshot.
		r.client.Del(ctx, snapshotKey)
		return nil, false, nil
	}
	return coll, true, nil
}

func (r *RedisCache) Put(ctx context.Context, c domain.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, snapshotKey, data, r.ttl).Err()
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, snapshotKey).Err()
}
