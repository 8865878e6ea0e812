package mempool

import (
	"sync"
)

// A simple sized pool for the []int32 label grids and []uint8 masks used while
// tracing borders, to reduce allocations when many images are processed.

var (
	int32Pools sync.Map // key: size class (int), value: *sync.Pool
	uint8Pools sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next power-of-two-ish bucket to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	// round up to next multiple of 1024
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func get[T any](pools *sync.Map, n int) []T {
	cls := sizeClass(n)
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		// Fallback
		buf := make([]T, cls)
		return buf[:n]
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	// Pooled buffers keep stale contents.
	buf = buf[:n]
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return // skip
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetInt32 retrieves a zeroed []int32 buffer of length n from the pool.
// The caller must return it via PutInt32 when done.
func GetInt32(n int) []int32 { return get[int32](&int32Pools, n) }

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) { put(&int32Pools, buf) }

// GetUint8 retrieves a zeroed []uint8 buffer of length n from the pool.
// The caller must return it via PutUint8 when done.
func GetUint8(n int) []uint8 { return get[uint8](&uint8Pools, n) }

// PutUint8 returns a buffer to the pool. It is safe to pass a nil slice.
func PutUint8(buf []uint8) { put(&uint8Pools, buf) }
