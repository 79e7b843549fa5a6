package supersonic

import (
	"sync/atomic"
	"time"

	"github.com/samaaron/supersonic-go/internal/engine"
)

// LatencyBuckets defines the dispatch-latency histogram buckets in
// nanoseconds, logarithmically spaced from 1us to 10s, carried over from
// the teacher's own bucket table.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics is the PM-mode local counter aggregator: when there is no shared
// memory to hold atomic cells (internal/metrics.View), the worklet keeps
// its own counters here and the supervisor periodically pulls a snapshot.
// In SAB mode these same categories live in internal/metrics.View instead,
// and Metrics is unused. Structurally this mirrors the teacher's own
// Metrics type: per-category atomic counters plus a latency histogram,
// generalized from I/O op categories to OSC dispatch categories.
type Metrics struct {
	Immediate    atomic.Uint64
	NearFuture   atomic.Uint64
	Late         atomic.Uint64
	FarFuture    atomic.Uint64
	Bypassed     atomic.Uint64
	Scheduled    atomic.Uint64
	Dispatched   atomic.Uint64

	DroppedIn    atomic.Uint64
	DroppedOut   atomic.Uint64
	DroppedDebug atomic.Uint64
	Retried      atomic.Uint64

	BufferBytesAllocated atomic.Uint64
	BufferOpsFailed      atomic.Uint64

	TotalDispatchLatencyNs atomic.Uint64
	DispatchCount          atomic.Uint64
	DispatchLatencyBuckets [numLatencyBuckets]atomic.Uint64

	ScheduleDepth atomic.Uint32

	StartTime atomic.Int64
}

// NewMetrics creates a zeroed Metrics with its start time stamped now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// ObserveDispatch implements engine.Observer.
func (m *Metrics) ObserveDispatch(category string, latencyNs uint64) {
	switch category {
	case "immediate":
		m.Immediate.Add(1)
	case "near_future":
		m.NearFuture.Add(1)
	case "late":
		m.Late.Add(1)
	case "far_future":
		m.FarFuture.Add(1)
	case "bypassed":
		m.Bypassed.Add(1)
	case "scheduled":
		m.Scheduled.Add(1)
	}
	m.Dispatched.Add(1)
	m.TotalDispatchLatencyNs.Add(latencyNs)
	m.DispatchCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.DispatchLatencyBuckets[i].Add(1)
		}
	}
}

// ObserveDrop implements engine.Observer.
func (m *Metrics) ObserveDrop(ring string, count uint32) {
	switch ring {
	case "in":
		m.DroppedIn.Add(uint64(count))
	case "out":
		m.DroppedOut.Add(uint64(count))
	case "debug":
		m.DroppedDebug.Add(uint64(count))
	}
}

// ObserveScheduleDepth implements engine.Observer.
func (m *Metrics) ObserveScheduleDepth(depth uint32) {
	m.ScheduleDepth.Store(depth)
}

// ObserveBufferOp implements engine.Observer.
func (m *Metrics) ObserveBufferOp(kind string, bytes uint64, success bool) {
	if success {
		m.BufferBytesAllocated.Add(bytes)
		return
	}
	m.BufferOpsFailed.Add(1)
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics suitable
// for posting across a message port in PM mode.
type MetricsSnapshot struct {
	Immediate, NearFuture, Late, FarFuture, Bypassed uint64
	Scheduled, Dispatched                            uint64
	DroppedIn, DroppedOut, DroppedDebug, Retried      uint64
	BufferBytesAllocated, BufferOpsFailed             uint64
	AvgDispatchLatencyNs                              uint64
	DispatchLatencyHistogram                          [numLatencyBuckets]uint64
	ScheduleDepth                                      uint32
	UptimeNs                                           uint64

	// MinHeadroomMs mirrors internal/metrics.CellMinHeadroomMs: the
	// smallest (dispatch-time minus due-time) margin observed, in
	// milliseconds. It is populated by Supervisor.Snapshot from the
	// prescheduler's own gauge, since Metrics has no dispatch-timing
	// visibility of its own; math.MaxFloat64 means no bundle has
	// dispatched yet.
	MinHeadroomMs float64
}

// Snapshot takes a consistent-enough read of every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Immediate: m.Immediate.Load(), NearFuture: m.NearFuture.Load(),
		Late: m.Late.Load(), FarFuture: m.FarFuture.Load(),
		Bypassed: m.Bypassed.Load(), Scheduled: m.Scheduled.Load(),
		Dispatched: m.Dispatched.Load(),
		DroppedIn: m.DroppedIn.Load(), DroppedOut: m.DroppedOut.Load(),
		DroppedDebug: m.DroppedDebug.Load(), Retried: m.Retried.Load(),
		BufferBytesAllocated: m.BufferBytesAllocated.Load(),
		BufferOpsFailed:      m.BufferOpsFailed.Load(),
		ScheduleDepth:        m.ScheduleDepth.Load(),
		UptimeNs:             uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	if count := m.DispatchCount.Load(); count > 0 {
		snap.AvgDispatchLatencyNs = m.TotalDispatchLatencyNs.Load() / count
	}
	for i := range m.DispatchLatencyBuckets {
		snap.DispatchLatencyHistogram[i] = m.DispatchLatencyBuckets[i].Load()
	}
	return snap
}

var _ engine.Observer = (*Metrics)(nil)

// NoOpObserver discards everything; used wherever an Observer is required
// but telemetry is not wanted (most unit tests).
type NoOpObserver struct{}

func (NoOpObserver) ObserveDispatch(string, uint64)    {}
func (NoOpObserver) ObserveDrop(string, uint32)        {}
func (NoOpObserver) ObserveScheduleDepth(uint32)       {}
func (NoOpObserver) ObserveBufferOp(string, uint64, bool) {}

var _ engine.Observer = NoOpObserver{}
