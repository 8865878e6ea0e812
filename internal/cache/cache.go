// Package cache stores serialized analysis results keyed by a digest of the
// uploaded image and the options it was analyzed with.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache is a byte-value store with a fixed entry lifetime.
type Cache interface {
	// Get returns the value and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	TTL        time.Duration // zero keeps entries until evicted
	MaxEntries int           // memory backend only
	Redis      RedisOptions
}

// New creates the cache named by opts.Backend. An empty backend is treated
// as none.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendNone:
		return Noop{}, nil
	case BackendMemory:
		return NewMemory(opts.MaxEntries, opts.TTL)
	case BackendRedis:
		r := NewRedis(opts.Redis, opts.TTL)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opts.Redis.Addr, err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Key derives a cache key from the raw upload and a description of the
// options that influence the result.
func Key(data []byte, variant string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(variant))
	return hex.EncodeToString(h.Sum(nil))
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }
func (Noop) Close() error                                      { return nil }

// Stats counts lookups on a cache.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (s *Stats) record(hit bool) {
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
}

// Hits returns the number of successful lookups.
func (s *Stats) Hits() int64 { return s.hits.Load() }

// Misses returns the number of lookups that found nothing.
func (s *Stats) Misses() int64 { return s.misses.Load() }
