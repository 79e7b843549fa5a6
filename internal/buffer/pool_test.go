package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocRoundsUpToAlignment(t *testing.T) {
	p := NewPool(1024)
	off, err := p.Alloc(13)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
	assert.Equal(t, 16, p.Used())
}

func TestAllocFirstFitThenFree(t *testing.T) {
	p := NewPool(64)
	a, err := p.Alloc(16)
	require.NoError(t, err)
	b, err := p.Alloc(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	p.Free(a, 16)
	assert.Equal(t, 16, p.Used())

	c, err := p.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, a, c, "first-fit should reuse the freed span")
}

func TestAllocExhaustedReportsSizes(t *testing.T) {
	p := NewPool(32)
	_, err := p.Alloc(16)
	require.NoError(t, err)

	_, err = p.Alloc(32)
	require.Error(t, err)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 32, exhausted.Requested)
	assert.Equal(t, 16, exhausted.Available)
	assert.Equal(t, 32, exhausted.Total)
}

func TestFreeCoalescesAdjacentSpans(t *testing.T) {
	p := NewPool(48)
	a, _ := p.Alloc(16)
	b, _ := p.Alloc(16)
	c, _ := p.Alloc(16)

	p.Free(a, 16)
	p.Free(b, 16)
	p.Free(c, 16)

	assert.Equal(t, 48, p.Available())
	off, err := p.Alloc(48)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
}

func TestAllocDoesNotMutateStateOnFailure(t *testing.T) {
	p := NewPool(16)
	before := p.Available()
	_, err := p.Alloc(32)
	require.Error(t, err)
	assert.Equal(t, before, p.Available())
}
