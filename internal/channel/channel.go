// Package channel implements the OSC Channel: the per-source send path
// that classifies every outgoing packet and either forwards it straight
// to the IN ring or hands it to the prescheduler, counting packets by
// category as it goes. Modeled on the teacher's Runner, which is also a
// single type sitting between an untyped byte path (the kernel descriptor)
// and a typed destination (the backend), tracking per-operation counters
// as it dispatches.
package channel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/samaaron/supersonic-go/internal/osc"
)

// ErrClosed is returned by Send once Close has been called.
var ErrClosed = errors.New("channel: closed")

// Writer is the destination for packets that bypass the prescheduler: the
// IN ring's multi-producer write path.
type Writer interface {
	WriteMP(sourceID uint32, payload []byte, maxSpins int) error
}

// Scheduler is the destination for far-future bundles. It is implemented
// by internal/prescheduler.Scheduler; Channel only depends on this narrow
// interface to avoid an import cycle between the two packages.
type Scheduler interface {
	Enqueue(ctx context.Context, sourceID uint32, sessionID uint32, runTag string, dueNtp osc.NtpTimestamp, payload []byte) error
}

// Counters tallies packets by the category Classify assigned them, plus
// the channel-wide totals spec.md §4.3 requires: one messagesSent counter
// and one bytesSent counter per channel, and a bypassed total alongside
// the per-category breakdown. Every field except Dropped is only
// incremented once a packet has actually been handed off successfully —
// per §4.3, "metrics are only updated on success." Dropped is the one
// exception: it counts hand-offs that failed.
type Counters struct {
	NonBundle  atomic.Uint64
	Immediate  atomic.Uint64
	NearFuture atomic.Uint64
	Late       atomic.Uint64
	FarFuture  atomic.Uint64
	Dropped    atomic.Uint64

	MessagesSent atomic.Uint64
	BytesSent    atomic.Uint64
	Bypassed     atomic.Uint64
}

// CountersSnapshot is a point-in-time, non-atomic copy of Counters,
// suitable for folding into a Supervisor-level metrics snapshot.
type CountersSnapshot struct {
	NonBundle  uint64
	Immediate  uint64
	NearFuture uint64
	Late       uint64
	FarFuture  uint64
	Dropped    uint64

	MessagesSent uint64
	BytesSent    uint64
	Bypassed     uint64
}

// Channel is the per-source OSC send path.
type Channel struct {
	sourceID    uint32
	clock       osc.Clock
	lookahead   time.Duration
	writer      Writer
	scheduler   Scheduler
	maxSpins    int
	counters    Counters
	closed      atomic.Bool
}

// Config configures a new Channel.
type Config struct {
	SourceID  uint32
	Clock     osc.Clock
	Lookahead time.Duration
	Writer    Writer
	Scheduler Scheduler
	MaxSpins  int
}

// New creates a Channel bound to one source id.
func New(cfg Config) *Channel {
	return &Channel{
		sourceID:  cfg.SourceID,
		clock:     cfg.Clock,
		lookahead: cfg.Lookahead,
		writer:    cfg.Writer,
		scheduler: cfg.Scheduler,
		maxSpins:  cfg.MaxSpins,
	}
}

// Send classifies raw and routes it to the direct write path or the
// prescheduler, using no session id and no run tag.
func (c *Channel) Send(ctx context.Context, raw []byte) error {
	return c.SendWithOptions(ctx, raw, 0, "")
}

// SendWithOptions is Send with an explicit sessionID/runTag pair attached,
// used for bundles the caller may later want to cancel selectively.
func (c *Channel) SendWithOptions(ctx context.Context, raw []byte, sessionID uint32, runTag string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	category := osc.Classify(raw, c.clock, c.lookahead)
	bypass := osc.ShouldBypass(category)

	var err error
	if bypass {
		err = c.sendDirect(raw)
	} else {
		err = c.sendToPrescheduler(ctx, raw, sessionID, runTag)
	}
	if err != nil {
		return err
	}

	c.count(category)
	c.counters.MessagesSent.Add(1)
	c.counters.BytesSent.Add(uint64(len(raw)))
	if bypass {
		c.counters.Bypassed.Add(1)
	}
	return nil
}

func (c *Channel) sendDirect(raw []byte) error {
	if err := c.writer.WriteMP(c.sourceID, raw, c.maxSpins); err != nil {
		c.counters.Dropped.Add(1)
		return err
	}
	return nil
}

func (c *Channel) sendToPrescheduler(ctx context.Context, raw []byte, sessionID uint32, runTag string) error {
	ts := osc.BundleTimestamp(raw)
	if err := c.scheduler.Enqueue(ctx, c.sourceID, sessionID, runTag, ts, raw); err != nil {
		c.counters.Dropped.Add(1)
		return err
	}
	return nil
}

func (c *Channel) count(category osc.Category) {
	switch category {
	case osc.NonBundle:
		c.counters.NonBundle.Add(1)
	case osc.Immediate:
		c.counters.Immediate.Add(1)
	case osc.NearFuture:
		c.counters.NearFuture.Add(1)
	case osc.Late:
		c.counters.Late.Add(1)
	case osc.FarFuture:
		c.counters.FarFuture.Add(1)
	}
}

// Snapshot returns a point-in-time copy of this channel's counters,
// suitable for folding into a Supervisor-level metrics snapshot.
func (c *Channel) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		NonBundle:  c.counters.NonBundle.Load(),
		Immediate:  c.counters.Immediate.Load(),
		NearFuture: c.counters.NearFuture.Load(),
		Late:       c.counters.Late.Load(),
		FarFuture:  c.counters.FarFuture.Load(),
		Dropped:    c.counters.Dropped.Load(),

		MessagesSent: c.counters.MessagesSent.Load(),
		BytesSent:    c.counters.BytesSent.Load(),
		Bypassed:     c.counters.Bypassed.Load(),
	}
}

// Close marks the channel closed; subsequent Send calls return ErrClosed.
func (c *Channel) Close() error {
	c.closed.Store(true)
	return nil
}

// SourceID returns the source id this channel sends as.
func (c *Channel) SourceID() uint32 { return c.sourceID }
