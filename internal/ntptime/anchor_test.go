package ntptime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnchorUnestablishedReturnsNotOk(t *testing.T) {
	clock := 0.0
	a := NewAnchor(func() float64 { return clock })
	_, ok := a.NowNtp()
	assert.False(t, ok)
}

func TestAnchorExtrapolatesFromAudioTime(t *testing.T) {
	clock := 10.0
	a := NewAnchor(func() float64 { return clock })
	a.Resync(5000.0)

	now, ok := a.NowNtp()
	assert.True(t, ok)
	assert.InDelta(t, 5000.0, now.Seconds64(), 0.001)

	clock = 12.5
	now, ok = a.NowNtp()
	assert.True(t, ok)
	assert.InDelta(t, 5002.5, now.Seconds64(), 0.001)
}

func TestAnchorResyncRebasesCleanly(t *testing.T) {
	clock := 0.0
	a := NewAnchor(func() float64 { return clock })
	a.Resync(1000.0)
	clock = 100.0
	a.Resync(2000.0)

	now, ok := a.NowNtp()
	assert.True(t, ok)
	assert.InDelta(t, 2000.0, now.Seconds64(), 0.001)
}
