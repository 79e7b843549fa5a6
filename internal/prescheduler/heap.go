// Package prescheduler holds time-tagged OSC bundles that are not yet due
// and wakes exactly one timer for whichever bundle is due soonest,
// re-arming it whenever an earlier bundle is inserted. The single
// always-armed-or-idle timer state machine is new to this domain, but the
// heap itself and its handle-based cancellation indexes are grounded in
// ordinary container/heap usage; the per-tag mutex-guarded state
// transitions in the teacher's queue.Runner informed how cancellation is
// serialized through one worker goroutine rather than locked directly.
package prescheduler

import (
	"container/heap"

	"github.com/samaaron/supersonic-go/internal/osc"
)

// Handle identifies one pending bundle for cancellation and heap removal.
type Handle uint64

// pendingBundle is one entry in the min-heap, keyed by (dueNtp, seq).
type pendingBundle struct {
	handle    Handle
	dueNtp    osc.NtpTimestamp
	seq       uint64
	sourceID  uint32
	sessionID uint32
	runTag    string
	payload   []byte

	index int // maintained by container/heap
}

// bundleHeap is a container/heap.Interface ordered by (dueNtp asc, seq asc).
type bundleHeap []*pendingBundle

func (h bundleHeap) Len() int { return len(h) }

func (h bundleHeap) Less(i, j int) bool {
	di, dj := h[i].dueNtp.Seconds64(), h[j].dueNtp.Seconds64()
	if di != dj {
		return di < dj
	}
	return h[i].seq < h[j].seq
}

func (h bundleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *bundleHeap) Push(x any) {
	b := x.(*pendingBundle)
	b.index = len(*h)
	*h = append(*h, b)
}

func (h *bundleHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	b.index = -1
	*h = old[:n-1]
	return b
}

var _ heap.Interface = (*bundleHeap)(nil)
