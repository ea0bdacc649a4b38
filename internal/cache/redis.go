package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "newspan:page:"
	redisPingTimeout   = 5 * time.Second
)

// RedisOptions configures a Redis-backed cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Logger   *slog.Logger
}

// Redis shares cached pages between processes.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis cache: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, logger: logger}, nil
}

// Key hashes a URL into a bounded Redis key.
func (r *Redis) Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Get treats Redis errors as misses.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	v, err := r.client.Get(ctx, r.Key(key)).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("cache get", "err", err)
		}
		return "", false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.Key(key), value, ttl).Err(); err != nil {
		r.logger.Warn("cache set", "err", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
