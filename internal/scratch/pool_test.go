package scratch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBufferReturnsRequestedLength(t *testing.T) {
	buf := GetBuffer(200)
	defer PutBuffer(buf)
	assert.Len(t, buf, 200)
}

func TestGetBufferCapIsAtLeastRequestedSize(t *testing.T) {
	buf := GetBuffer(200)
	defer PutBuffer(buf)
	assert.GreaterOrEqual(t, Cap(buf), 200)
}

func TestGetBufferZeroSizeIsEmpty(t *testing.T) {
	buf := GetBuffer(0)
	assert.Len(t, buf, 0)
}
