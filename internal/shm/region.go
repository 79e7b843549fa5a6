// Package shm provides the page-aligned anonymous-mmap region that stands
// in for the browser's SharedArrayBuffer: ring buffers, metrics cells, the
// NTP anchor, the node-tree mirror, and the sample-buffer pool all live in
// sub-slices of one Region. Modeled on how the teacher (go-ublk) mmaps its
// descriptor and I/O-buffer regions in internal/queue/runner.go, but backed
// by a single anonymous mapping instead of a device fd, since there is no
// kernel object on the other end — only the simulated engine goroutine.
package shm

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/samaaron/supersonic-go/internal/constants"
)

// Region is a fixed-size, page-aligned block of memory shared between the
// supervisor, its worker goroutines, and the (simulated) engine. Exactly one
// mutator owns each sub-region at a time.
type Region struct {
	Layout Layout
	data   []byte
	mapped bool
}

// NewRegion allocates a Region of the given layout via an anonymous,
// page-aligned mmap so that the ring control blocks and metrics cells sit on
// real shared pages (matching how the teacher's mmapQueues maps shared
// descriptor/buffer memory) rather than an ordinary Go slice, which the
// runtime is otherwise free to move.
func NewRegion(layout Layout) (*Region, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	data, err := unix.Mmap(-1, 0, layout.Total,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %d bytes: %w", layout.Total, err)
	}

	return &Region{Layout: layout, data: data, mapped: true}, nil
}

// Close unmaps the region. Safe to call once; subsequent calls are no-ops.
func (r *Region) Close() error {
	if !r.mapped {
		return nil
	}
	r.mapped = false
	return unix.Munmap(r.data)
}

func (r *Region) slice(off, size int) []byte {
	return r.data[off : off+size]
}

func (r *Region) InRingBytes() []byte    { return r.slice(r.Layout.InRingOffset, r.Layout.InRingSize) }
func (r *Region) OutRingBytes() []byte   { return r.slice(r.Layout.OutRingOffset, r.Layout.OutRingSize) }
func (r *Region) DebugRingBytes() []byte { return r.slice(r.Layout.DebugRingOffset, r.Layout.DebugRingSize) }

// ControlBytes returns the control-block slice for ring index i (0=IN,
// 1=OUT, 2=DEBUG).
func (r *Region) ControlBytes(i int) []byte {
	off := r.Layout.ControlOffset + i*ControlBlockSize
	return r.slice(off, ControlBlockSize)
}

func (r *Region) MetricsBytes() []byte {
	return r.slice(r.Layout.MetricsOffset, constants.MetricsRegionSize)
}
func (r *Region) NtpBytes() []byte     { return r.slice(r.Layout.NtpOffset, 8) }
func (r *Region) MirrorBytes() []byte  { return r.slice(r.Layout.MirrorOffset, r.Layout.MirrorSize) }
func (r *Region) CaptureBytes() []byte { return r.slice(r.Layout.CaptureOffset, r.Layout.CaptureSize) }
func (r *Region) BufferPoolBytes() []byte {
	return r.slice(r.Layout.BufferPoolOffset, r.Layout.BufferPoolSize)
}
