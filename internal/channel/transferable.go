package channel

import (
	"time"

	"github.com/samaaron/supersonic-go/internal/osc"
)

// Transferable is the plain-data projection of a Channel's configuration
// that can cross a goroutine boundary (standing in for structured-clone
// across a postMessage/MessagePort transfer in the browser) so a worker
// can reconstruct an equivalent Channel without sharing the original's
// unexported state.
type Transferable struct {
	SourceID  uint32
	Lookahead time.Duration
	MaxSpins  int
}

// ToTransferable projects c into a Transferable snapshot.
func (c *Channel) ToTransferable() Transferable {
	return Transferable{
		SourceID:  c.sourceID,
		Lookahead: c.lookahead,
		MaxSpins:  c.maxSpins,
	}
}

// Rehydrate reconstructs a Channel from a Transferable plus the
// destination collaborators, which are never transferable themselves.
func Rehydrate(t Transferable, clock osc.Clock, writer Writer, scheduler Scheduler) *Channel {
	return New(Config{
		SourceID:  t.SourceID,
		Clock:     clock,
		Lookahead: t.Lookahead,
		Writer:    writer,
		Scheduler: scheduler,
		MaxSpins:  t.MaxSpins,
	})
}
