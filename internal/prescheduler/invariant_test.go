package prescheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/samaaron/supersonic-go/internal/osc"
)

// TestAccountingInvariantHolds checks that scheduled == dispatched +
// cancelled + retriesFailed + currentlyPending across random sequences of
// enqueue/cancelAll operations. The writer accepts every write, so
// retriesFailed stays 0, and the clock stays at zero, so bundles not yet
// due remain pending unless cancelAll removes them.
func TestAccountingInvariantHolds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := &fixedClock{ok: true}
		clock.set(0.0)
		w := &recordingWriter{}
		s := New(Config{
			Capacity:       4096,
			Lookahead:      10 * time.Millisecond,
			MaxRetries:     1,
			RetryBaseDelay: 2 * time.Millisecond,
			MaxSpins:       4,
			Writer:         w,
			Clock:          clock,
		})
		ctx, cancel := context.WithCancel(context.Background())
		go s.Run(ctx)
		defer cancel()

		n := rapid.IntRange(1, 30).Draw(t, "n")
		for i := 0; i < n; i++ {
			dueOffset := rapid.Float64Range(0.01, 0.05).Draw(t, "due")
			_ = s.Enqueue(context.Background(), uint32(i), 0, "", osc.NtpFromSeconds64(dueOffset), []byte{byte(i)})
		}

		if rapid.Bool().Draw(t, "cancelAll") {
			s.CancelAll()
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			stats := s.Snapshot()
			total := stats.Dispatched + stats.Cancelled + stats.RetriesFailed + stats.CurrentlyPending
			if total == stats.Scheduled && stats.CurrentlyPending == 0 {
				break
			}
			time.Sleep(2 * time.Millisecond)
		}

		stats := s.Snapshot()
		total := stats.Dispatched + stats.Cancelled + stats.RetriesFailed + stats.CurrentlyPending
		assert.Equal(t, stats.Scheduled, total)
	})
}
