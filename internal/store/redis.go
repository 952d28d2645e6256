package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
	redis "github.com/redis/go-redis/v9"
)

var _ SnapshotStore = &RedisSnapshots{}

// RedisSnapshots keeps snapshots in Redis so that every instance of the
// registry sees the same state.
type RedisSnapshots struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

func NewRedisSnapshots(client redis.Cmdable, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{
		client: client,
		prefix: "cast-registry:",
		ttl:    ttl,
	}
}

func (r *RedisSnapshots) Get(ctx context.Context, key string) (*fastdeploy.Deployment, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return decodeSnapshot(data)
}

func (r *RedisSnapshots) Put(ctx context.Context, key string, d *fastdeploy.Deployment) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}
