package ring

import (
	"errors"
	"sync/atomic"

	"github.com/samaaron/supersonic-go/internal/constants"
)

// ErrFrameTooLarge is returned when a payload cannot fit in the ring even
// when empty.
var ErrFrameTooLarge = errors.New("ring: frame larger than ring capacity")

// ErrRingFull is returned by the non-blocking write path when there is not
// currently enough free space for the frame.
var ErrRingFull = errors.New("ring: insufficient free space")

// ErrWriteContended is returned by WriteMP when the write lock could not be
// acquired within the configured spin budget.
var ErrWriteContended = errors.New("ring: write lock contended")

// Ring is a byte-addressed circular buffer over a fixed-size slice, used
// for both the single-producer OUT/DEBUG rings (engine -> supervisor) and
// the multi-producer IN ring (worker goroutines -> engine). head is the
// next byte a writer will use; tail is the next byte a reader will
// consume. Both only ever grow (mod 2^32); a byte offset's position in buf
// is offset % len(buf), so unlike a classic power-of-two ring this one
// accepts any capacity the shared-memory layout hands it (the IN ring is
// not a power of two).
type Ring struct {
	buf      []byte
	cap      uint32
	head     atomic.Uint32
	tail     atomic.Uint32
	seq      atomic.Uint32
	writeLck atomic.Bool

	// lastSeq/haveLastSeq belong to the single reader and carry the last
	// observed sequence number from one Read call to the next.
	lastSeq     uint32
	haveLastSeq bool
}

// New wraps buf as a Ring.
func New(buf []byte) (*Ring, error) {
	if len(buf) == 0 {
		return nil, errors.New("ring: buffer must be non-empty")
	}
	return &Ring{buf: buf, cap: uint32(len(buf))}, nil
}

func (r *Ring) capacity() uint32 { return r.cap }

func (r *Ring) free(head, tail uint32) uint32 {
	return r.capacity() - (head - tail)
}

// writeAt copies src into the ring starting at byte offset off (mod
// capacity), wrapping as needed.
func (r *Ring) writeAt(off uint32, src []byte) {
	pos := off % r.cap
	n := copy(r.buf[pos:], src)
	if n < len(src) {
		copy(r.buf, src[n:])
	}
}

func (r *Ring) readAt(off uint32, dst []byte) {
	pos := off % r.cap
	n := copy(dst, r.buf[pos:])
	if n < len(dst) {
		copy(dst[n:], r.buf)
	}
}

// WriteSP is the single-producer fast path used by OUT and DEBUG, where
// exactly one goroutine ever calls WriteSP. It avoids the CAS entirely: the
// writer owns head outright and only needs a release-store so the reader's
// acquire-load of head observes the payload bytes written beneath it.
func (r *Ring) WriteSP(sourceID uint32, payload []byte) error {
	total := EncodedLen(len(payload))
	if uint32(total) > r.capacity() {
		return ErrFrameTooLarge
	}

	head := r.head.Load()
	tail := r.tail.Load()
	if r.free(head, tail) < uint32(total) {
		return ErrRingFull
	}

	seq := r.seq.Add(1)
	hdr := make([]byte, constants.FrameHeaderSize)
	PutHeader(hdr, Header{Length: uint32(len(payload)), SourceID: sourceID, Sequence: seq})

	r.writeAt(head, hdr)
	r.writeAt(head+constants.FrameHeaderSize, payload)

	// Release-store: publishes the frame bytes above to any reader that
	// subsequently acquire-loads head.
	r.head.Store(head + uint32(total))
	return nil
}

// WriteMP is the multi-producer path used by IN, where many worker
// goroutines race to append. It takes a spinlock on writeLck with one CAS
// attempt plus up to maxSpins retries; callers unwilling to spin (the main dispatch
// path) should treat ErrWriteContended as backpressure and retry later
// rather than block.
func (r *Ring) WriteMP(sourceID uint32, payload []byte, maxSpins int) error {
	total := EncodedLen(len(payload))
	if uint32(total) > r.capacity() {
		return ErrFrameTooLarge
	}

	if !r.acquireWriteLock(maxSpins) {
		return ErrWriteContended
	}
	defer r.writeLck.Store(false)

	head := r.head.Load()
	tail := r.tail.Load()
	if r.free(head, tail) < uint32(total) {
		return ErrRingFull
	}

	seq := r.seq.Add(1)
	hdr := make([]byte, constants.FrameHeaderSize)
	PutHeader(hdr, Header{Length: uint32(len(payload)), SourceID: sourceID, Sequence: seq})

	r.writeAt(head, hdr)
	r.writeAt(head+constants.FrameHeaderSize, payload)
	r.head.Store(head + uint32(total))
	return nil
}

func (r *Ring) acquireWriteLock(maxSpins int) bool {
	if r.writeLck.CompareAndSwap(false, true) {
		return true
	}
	for i := 0; i < maxSpins; i++ {
		if r.writeLck.CompareAndSwap(false, true) {
			return true
		}
	}
	return false
}

// Frame is a decoded payload handed back to a ring reader, along with the
// sequence number it carried and how many sequence numbers were skipped
// since the previous read (dropped frames, detected only by a gap in an
// otherwise monotonic counter).
type Frame struct {
	SourceID uint32
	Sequence uint32
	Dropped  uint32
	Payload  []byte
}

// Read drains every fully-written frame currently between tail and head.
// The acquire-load of head happens-before any read of the bytes beneath
// it, mirroring the release-store in WriteSP/WriteMP: the Go memory model
// guarantees this pairing without an explicit fence.
func (r *Ring) Read() []Frame {
	head := r.head.Load()
	tail := r.tail.Load()

	var frames []Frame
	lastSeq := r.lastSeq
	haveLastSeq := r.haveLastSeq

	for tail != head {
		hdrBuf := make([]byte, constants.FrameHeaderSize)
		r.readAt(tail, hdrBuf)
		hdr := GetHeader(hdrBuf)

		payload := make([]byte, hdr.Length)
		r.readAt(tail+constants.FrameHeaderSize, payload)

		var dropped uint32
		if haveLastSeq && hdr.Sequence > lastSeq+1 {
			gap := hdr.Sequence - lastSeq - 1
			if gap <= constants.SequenceGapSanityLimit {
				dropped = gap
			}
		}
		lastSeq = hdr.Sequence
		haveLastSeq = true

		frames = append(frames, Frame{
			SourceID: hdr.SourceID,
			Sequence: hdr.Sequence,
			Dropped:  dropped,
			Payload:  payload,
		})

		tail += uint32(EncodedLen(int(hdr.Length)))
	}

	r.lastSeq, r.haveLastSeq = lastSeq, haveLastSeq
	r.tail.Store(tail)
	return frames
}

// Len reports the number of bytes currently occupied in the ring.
func (r *Ring) Len() uint32 {
	return r.head.Load() - r.tail.Load()
}

// Capacity reports the ring's total byte capacity.
func (r *Ring) Capacity() uint32 {
	return r.capacity()
}
