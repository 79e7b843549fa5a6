// Package metrics defines the fixed layout of the metrics region shared
// between the dispatch plane and the engine in SharedArrayBuffer mode, and
// the atomic cell accessors over it. This is the shared-memory-native
// counterpart to the local, PM-mode Metrics type at the module root: both
// ultimately feed the same MetricsSnapshot shape, grounded in the
// teacher's atomic Metrics/Snapshot/Observer triad in metrics.go.
package metrics

// Cell identifies one 4-byte ordinal slot within the metrics region. Most
// cells are plain uint32 counters; CellMinHeadroomMs is the one gauge, and
// uses the CellUnset sentinel rather than zero to mean "no sample yet" (a
// real headroom sample can legitimately be zero or negative).
type Cell int

const (
	CellImmediate Cell = iota
	CellNearFuture
	CellLate
	CellFarFuture
	CellBypassed
	CellScheduled
	CellDispatched
	CellDroppedIn
	CellDroppedOut
	CellDroppedDebug
	CellRetried
	CellBufferBytesAllocated
	CellMinHeadroomMs

	cellCount
)

// CellSize is the byte width of a single cell.
const CellSize = 4

// RegionSize is the total byte footprint of the metrics region; it must
// match internal/constants.MetricsRegionSize.
const RegionSize = int(cellCount) * CellSize
