package supersonic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samaaron/supersonic-go/internal/osc"
)

type fixedClock struct {
	seconds float64
	ok      bool
}

func (c fixedClock) NowNtp() (osc.NtpTimestamp, bool) {
	return osc.NtpFromSeconds64(c.seconds), c.ok
}

func bundleOf(sec, frac uint32) []byte {
	b := make([]byte, 16)
	copy(b, "#bundle\x00")
	b[8] = byte(sec >> 24)
	b[9] = byte(sec >> 16)
	b[10] = byte(sec >> 8)
	b[11] = byte(sec)
	b[12] = byte(frac >> 24)
	b[13] = byte(frac >> 16)
	b[14] = byte(frac >> 8)
	b[15] = byte(frac)
	return b
}

func TestHarnessSendImmediateReachesEngine(t *testing.T) {
	h, err := NewHarness(HarnessConfig{RingSize: 4096, Clock: fixedClock{ok: true}})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Channel.Send(context.Background(), bundleOf(0, 0)))
	require.NoError(t, h.Drive(context.Background()))

	assert.Len(t, h.MockEngine.Handled(), 1)
}

func TestHarnessSendFarFutureDispatchesLater(t *testing.T) {
	clock := fixedClock{seconds: 0, ok: true}
	h, err := NewHarness(HarnessConfig{RingSize: 4096, Lookahead: 50 * time.Millisecond, Clock: clock})
	require.NoError(t, err)
	defer h.Close()

	due := osc.NtpFromSeconds64(0.2)
	raw := bundleOf(due.Seconds, due.Fraction)
	require.NoError(t, h.Channel.Send(context.Background(), raw))

	require.NoError(t, h.Drive(context.Background()))
	assert.Empty(t, h.MockEngine.Handled(), "far-future bundle should not reach the engine immediately")
}
