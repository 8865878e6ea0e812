package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions holds the connection settings of the redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis stores entries in a Redis server so several server instances can
// share results.
type Redis struct {
	Stats

	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis creates a redis backed cache. The connection is established
// lazily; use Ping to check it.
func NewRedis(opts RedisOptions, ttl time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Redis{client: client, ttl: ttl, prefix: opts.Prefix}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns the stored value; redis.Nil is reported as a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.record(false)
			return nil, false, nil
		}
		return nil, false, err
	}
	r.record(true)
	return data, true, nil
}

// Set stores value with the configured lifetime.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
