package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "crushbot:"

// RedisClient is the subset of *redis.Client the redis driver uses.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Close() error
}

// Redis stores each entry as a plain string key written with SETNX. Shared
// entries never expire and their keys are collected in the <prefix>shared set.
// Private entries expire after privateTTL.
type Redis struct {
	client     RedisClient
	prefix     string
	privateTTL time.Duration
}

// OpenRedis dials cfg.RedisAddr and pings it.
func OpenRedis(ctx context.Context, cfg Config) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("store: REDIS_ADDR is required for the redis driver")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}
	return NewRedis(client, cfg.RedisPrefix, cfg.PrivateTTL), nil
}

// NewRedis wraps an existing client.
func NewRedis(client RedisClient, prefix string, privateTTL time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, privateTTL: privateTTL}
}

func (r *Redis) Set(ctx context.Context, key, value string, shared bool) error {
	ttl := r.privateTTL
	if shared {
		ttl = 0
		// SADD before SETNX so a retried write never leaves a shared key
		// out of the index.
		if err := r.client.SAdd(ctx, r.prefix+"shared", key).Err(); err != nil {
			return fmt.Errorf("store: redis index shared %q: %w", key, err)
		}
	}

	ok, err := r.client.SetNX(ctx, r.prefix+key, value, ttl).Result()
	if err != nil {
		return fmt.Errorf("store: redis setnx %q: %w", key, err)
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
