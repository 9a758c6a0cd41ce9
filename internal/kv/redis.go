package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores values in a Redis instance, for kiosk setups where the master
// device shares a Redis with the rest of the booth.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis stores values under prefix:key, or bare keys when prefix is empty.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// NewRedisClient connects and pings with a short timeout. It returns an error
// instead of a half-working client so callers can fall back to File.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

// Load returns ErrNotFound for a missing key.
func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

// Save sets the key with no expiry.
func (r *Redis) Save(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
