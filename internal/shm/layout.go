package shm

import (
	"fmt"

	"github.com/samaaron/supersonic-go/internal/constants"
)

// Layout describes the fixed partition of the shared buffer. Offsets are
// computed once at init time and never change for the life of a Region.
type Layout struct {
	EngineHeapSize int

	InRingOffset, InRingSize       int
	OutRingOffset, OutRingSize     int
	DebugRingOffset, DebugRingSize int

	ControlOffset int // per-ring control blocks (head/tail/seq/lock)
	MetricsOffset int
	NtpOffset     int
	MirrorOffset int
	MirrorSize   int

	CaptureOffset int
	CaptureSize   int

	BufferPoolOffset int
	BufferPoolSize   int

	Total int
}

// ControlBlockSize is the per-ring control block: head, tail, sequence
// counter, write-lock, each a cache-line-padded u32.
const ControlBlockSize = 4 * 64

// NewLayout computes a Layout from the high-level sizes in Config,
// padding the total up to a whole number of WASM pages.
func NewLayout(engineHeapSize, bufferPoolSize int) (Layout, error) {
	if engineHeapSize < 0 || bufferPoolSize < 0 {
		return Layout{}, fmt.Errorf("shm: negative region size")
	}

	l := Layout{
		EngineHeapSize: engineHeapSize,
	}

	off := engineHeapSize

	l.InRingOffset = off
	l.InRingSize = constants.DefaultInRingSize
	off += l.InRingSize

	l.OutRingOffset = off
	l.OutRingSize = constants.DefaultOutRingSize
	off += l.OutRingSize

	l.DebugRingOffset = off
	l.DebugRingSize = constants.DefaultDebugRingSize
	off += l.DebugRingSize

	l.ControlOffset = off
	off += ControlBlockSize * 3 // IN, OUT, DEBUG

	l.MetricsOffset = off
	off += constants.MetricsRegionSize

	l.NtpOffset = off
	off += constants.NtpAnchorRegionSize

	l.MirrorOffset = off
	l.MirrorSize = constants.DefaultMirrorRegionSize
	off += l.MirrorSize

	l.CaptureOffset = off
	l.CaptureSize = constants.DefaultCaptureRegionSize
	off += l.CaptureSize

	l.BufferPoolOffset = off
	l.BufferPoolSize = bufferPoolSize
	off += bufferPoolSize

	l.Total = off

	if rem := l.Total % constants.WasmPageSize; rem != 0 {
		pad := constants.WasmPageSize - rem
		l.Total += pad
	}

	return l, nil
}

// Validate checks the hard invariant that all engine-side allocations fit
// within the configured engine heap and that memory is page-aligned.
func (l Layout) Validate() error {
	if l.Total%constants.WasmPageSize != 0 {
		return fmt.Errorf("shm: total size %d is not a multiple of the wasm page size %d", l.Total, constants.WasmPageSize)
	}
	if l.EngineHeapSize > l.InRingOffset {
		return fmt.Errorf("shm: engine heap size %d overruns ring base %d", l.EngineHeapSize, l.InRingOffset)
	}
	return nil
}
