// Package cache keeps fetched remote sources in redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tuifit:source:"

// Options configures the redis connection.
type Options struct {
	Addr        string
	Password    string
	DB          int
	TTL         time.Duration
	DialTimeout time.Duration
}

// Redis stores payloads keyed by source URL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, ttl: opts.TTL}, nil
}

// Key returns the redis key used for a source URL.
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached payload, or false when there is none.
func (r *Redis) Get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, Key(rawURL)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get source from redis: %w", err)
	}
	return data, true, nil
}

// Set stores a payload with the configured TTL. A zero TTL never expires.
func (r *Redis) Set(ctx context.Context, rawURL string, data []byte) error {
	if err := r.client.Set(ctx, Key(rawURL), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set source in redis: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
