// Package buffer implements the sample-buffer lifecycle: a byte pool for
// interleaved PCM data, a per-bufnum lock chain so at most one preparation
// is ever active on a slot, and UUID-keyed pending operations that resolve
// or reject against the engine's asynchronous confirmation messages.
//
// The pool itself is grounded in the teacher's Memory backend
// (backend/mem.go): a single fixed backing array with explicit byte
// accounting. Where the teacher shards a whole-device backend by 64KB
// range locks, this pool instead hands out first-fit spans of a shared
// region, since each span belongs to exactly one bufnum for its lifetime
// rather than being concurrently read/written by many callers.
package buffer

import (
	"fmt"
	"sync"
)

// Alignment is the byte alignment every allocation is rounded up to.
const Alignment = 8

type span struct {
	offset int
	size   int
}

// ExhaustedError is returned by Pool.Alloc when no free span is large
// enough, carrying the sizes a caller needs to build a descriptive error.
type ExhaustedError struct {
	Requested int
	Available int
	Total     int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("buffer pool exhausted: requested %d bytes, %d available of %d total",
		e.Requested, e.Available, e.Total)
}

// Pool is a first-fit byte allocator over a fixed-size region.
type Pool struct {
	mu    sync.Mutex
	total int
	free  []span // sorted by offset, coalesced
	used  int
}

// NewPool creates a Pool spanning exactly total bytes, entirely free.
func NewPool(total int) *Pool {
	return &Pool{total: total, free: []span{{offset: 0, size: total}}}
}

func alignUp(n int) int {
	if r := n % Alignment; r != 0 {
		n += Alignment - r
	}
	return n
}

// Alloc reserves size bytes (rounded up to Alignment) and returns the
// offset of the first byte. It does not mutate pool state on failure.
func (p *Pool) Alloc(size int) (int, error) {
	size = alignUp(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.free {
		if s.size < size {
			continue
		}
		offset := s.offset
		if s.size == size {
			p.free = append(p.free[:i], p.free[i+1:]...)
		} else {
			p.free[i] = span{offset: s.offset + size, size: s.size - size}
		}
		p.used += size
		return offset, nil
	}

	return 0, &ExhaustedError{Requested: size, Available: p.availableLocked(), Total: p.total}
}

// Free releases a span previously returned by Alloc, coalescing it with
// adjacent free spans.
func (p *Pool) Free(offset, size int) {
	size = alignUp(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	inserted := false
	result := make([]span, 0, len(p.free)+1)
	for _, s := range p.free {
		if !inserted && offset < s.offset {
			result = append(result, span{offset: offset, size: size})
			inserted = true
		}
		result = append(result, s)
	}
	if !inserted {
		result = append(result, span{offset: offset, size: size})
	}

	p.free = coalesce(result)
	p.used -= size
}

func coalesce(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	out := spans[:1]
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if last.offset+last.size == s.offset {
			last.size += s.size
			continue
		}
		out = append(out, s)
	}
	return out
}

func (p *Pool) availableLocked() int {
	n := 0
	for _, s := range p.free {
		n += s.size
	}
	return n
}

// Available reports currently free bytes.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableLocked()
}

// Used reports currently allocated bytes.
func (p *Pool) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Total reports the pool's fixed capacity.
func (p *Pool) Total() int { return p.total }
