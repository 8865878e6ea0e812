package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key([]byte("image"), "invert=false")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key([]byte("image"), "invert=false"))
	assert.NotEqual(t, a, Key([]byte("image"), "invert=true"))
	assert.NotEqual(t, a, Key([]byte("imag"), "einvert=false"))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	c, err = New(ctx, Options{Backend: BackendMemory, MaxEntries: 4})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(ctx, Options{Backend: BackendMemory})
	require.Error(t, err)

	_, err = New(ctx, Options{Backend: "disk"})
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	var c Noop
	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2, 0)
	require.NoError(t, err)

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("one")
	require.NoError(t, m.Set(ctx, "a", value))
	value[0] = 'X'

	got, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one", string(got), "stored value is a copy")

	require.NoError(t, m.Set(ctx, "b", []byte("two")))
	require.NoError(t, m.Set(ctx, "c", []byte("three")))
	assert.Equal(t, 2, m.Len())
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")

	assert.Equal(t, int64(1), m.Hits())
	assert.Equal(t, int64(2), m.Misses())

	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.Len())
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(4, time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

// TestRedis runs against a live server named by SHAPECTX_TEST_REDIS.
func TestRedis(t *testing.T) {
	addr := os.Getenv("SHAPECTX_TEST_REDIS")
	if addr == "" {
		t.Skip("SHAPECTX_TEST_REDIS not set")
	}
	ctx := context.Background()

	c, err := New(ctx, Options{
		Backend: BackendRedis,
		TTL:     time.Minute,
		Redis:   RedisOptions{Addr: addr, Prefix: "shapectx-test:"},
	})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	key := Key([]byte(t.Name()), time.Now().String())
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("payload")))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))
}

func TestRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, Options{Backend: BackendRedis, Redis: RedisOptions{Addr: "127.0.0.1:1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}
