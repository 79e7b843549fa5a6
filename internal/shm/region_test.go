package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayoutPageAligned(t *testing.T) {
	l, err := NewLayout(1<<20, 2<<20)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Total%(64*1024), "total size must be a multiple of the wasm page size")
	assert.NoError(t, l.Validate())
}

func TestRegionSubSlicesDoNotOverlap(t *testing.T) {
	l, err := NewLayout(4096, 4096)
	require.NoError(t, err)

	r, err := NewRegion(l)
	require.NoError(t, err)
	defer r.Close()

	in := r.InRingBytes()
	out := r.OutRingBytes()
	dbg := r.DebugRingBytes()
	pool := r.BufferPoolBytes()

	assert.Len(t, in, l.InRingSize)
	assert.Len(t, out, l.OutRingSize)
	assert.Len(t, dbg, l.DebugRingSize)
	assert.Len(t, pool, l.BufferPoolSize)

	// Writing into one sub-slice must never be visible in another.
	in[0] = 0xAB
	assert.NotEqual(t, byte(0xAB), out[0])
	assert.NotEqual(t, byte(0xAB), dbg[0])
	assert.NotEqual(t, byte(0xAB), pool[0])
}

func TestLayoutRejectsOversizedEngineHeap(t *testing.T) {
	l, err := NewLayout(1<<20, 0)
	require.NoError(t, err)
	l.EngineHeapSize = l.InRingOffset + 1
	assert.Error(t, l.Validate())
}
