// Package memory provides pooled buffers for reading OpenAPI documents.
// Specs can run into megabytes; pooling keeps repeated reloads from churning
// the allocator.
package memory

import (
	"bytes"
	"runtime"
	"sync"
)

// BufferPool manages a pool of reusable bytes.Buffer instances
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &bytes.Buffer{}
			},
		},
	}
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool for reuse. Oversized buffers are dropped
// so one huge spec does not pin memory forever.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf.Cap() <= 4*1024*1024 {
		bp.pool.Put(buf)
	}
}

// SpecReadLimiter tracks process memory while spec documents are loaded and
// forces a collection when loading pushes the heap over the configured limit.
type SpecReadLimiter struct {
	maxMemoryMB   int64
	checkInterval int64
	loadCount     int64
	mu            sync.Mutex
}

// NewSpecReadLimiter creates a limiter; maxMemoryMB <= 0 disables it.
func NewSpecReadLimiter(maxMemoryMB int64) *SpecReadLimiter {
	return &SpecReadLimiter{
		maxMemoryMB:   maxMemoryMB,
		checkInterval: 10,
	}
}

// Allow reports whether another spec load should proceed. Memory is sampled
// every few loads to keep the overhead off the hot path.
func (sl *SpecReadLimiter) Allow() bool {
	if sl.maxMemoryMB <= 0 {
		return true
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.loadCount++
	if sl.loadCount%sl.checkInterval != 0 {
		return true
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if int64(m.Alloc)/(1024*1024) <= sl.maxMemoryMB {
		return true
	}

	runtime.GC()
	runtime.ReadMemStats(&m)
	return int64(m.Alloc)/(1024*1024) <= sl.maxMemoryMB
}

// Stats returns the current heap allocation and OS-reserved memory in MB.
func (sl *SpecReadLimiter) Stats() (allocMB, sysMB int64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.Alloc) / (1024 * 1024), int64(m.Sys) / (1024 * 1024)
}
