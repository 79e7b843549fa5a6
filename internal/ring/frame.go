// Package ring implements the lock-free byte ring buffers that carry OSC
// frames between the supervisor's worker goroutines and the simulated
// engine, standing in for the postMessage/SharedArrayBuffer transport a
// browser build would use. The single-producer fast path and the
// CAS-guarded multi-producer path are modeled on the atomic descriptor
// loads and per-tag mutex guarding in the teacher's queue.Runner
// (internal/queue/runner.go), adapted from per-tag kernel descriptors to a
// single contended write cursor.
package ring

import (
	"encoding/binary"

	"github.com/samaaron/supersonic-go/internal/constants"
)

// Header is the fixed 16-byte frame header prefixing every payload written
// to a ring: length, the writer's source id, a monotonic sequence number,
// and a reserved word for future use.
type Header struct {
	Length   uint32
	SourceID uint32
	Sequence uint32
	Reserved uint32
}

// EncodedLen returns the total ring footprint of a payload of length n,
// including the header and the padding needed to keep the next frame
// 8-byte aligned.
func EncodedLen(n int) int {
	total := constants.FrameHeaderSize + n
	if rem := total % constants.FrameAlignment; rem != 0 {
		total += constants.FrameAlignment - rem
	}
	return total
}

// PutHeader encodes h into the first FrameHeaderSize bytes of dst.
func PutHeader(dst []byte, h Header) {
	binary.LittleEndian.PutUint32(dst[0:4], h.Length)
	binary.LittleEndian.PutUint32(dst[4:8], h.SourceID)
	binary.LittleEndian.PutUint32(dst[8:12], h.Sequence)
	binary.LittleEndian.PutUint32(dst[12:16], h.Reserved)
}

// GetHeader decodes a Header from the first FrameHeaderSize bytes of src.
func GetHeader(src []byte) Header {
	return Header{
		Length:   binary.LittleEndian.Uint32(src[0:4]),
		SourceID: binary.LittleEndian.Uint32(src[4:8]),
		Sequence: binary.LittleEndian.Uint32(src[8:12]),
		Reserved: binary.LittleEndian.Uint32(src[12:16]),
	}
}
