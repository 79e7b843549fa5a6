package buffer

import (
	"encoding/binary"
	"math"

	"github.com/samaaron/supersonic-go/internal/scratch"
)

// MemoryWriter gives the manager direct write access to the pool's
// backing bytes, the same "logical offset, one mutator" relationship the
// teacher's Memory backend has with its own byte slice (backend/mem.go),
// generalized here from whole-device reads/writes to guard-padded sample
// writes keyed by a pool offset rather than a sector LBA.
type MemoryWriter interface {
	WriteAt(offset int, data []byte)
}

// SliceMemory adapts a plain []byte (or a window into a shm.Region) to
// MemoryWriter.
type SliceMemory []byte

// WriteAt implements MemoryWriter.
func (m SliceMemory) WriteAt(offset int, data []byte) {
	copy(m[offset:], data)
}

// encodeInterleaved lays out samples as guard-padded, host-endian
// float32 PCM: guardBefore silent frames, the decoded frames, then
// guardAfter silent frames, each frame numChannels samples wide. Guard
// frames are left zeroed (silence), matching the cubic-interpolation
// safety margin the allocation size itself already reserves.
//
// The returned slice is a pooled scratch buffer (internal/scratch); the
// caller must return it with scratch.PutBuffer once its bytes have been
// copied into the pool region, the same borrow-then-return discipline
// internal/transport's PM batch encoder uses for its outbound buffers.
func encodeInterleaved(samples []float32, numFrames, numChannels, guardBefore, guardAfter int) []byte {
	totalFrames := numFrames + guardBefore + guardAfter
	out := scratch.GetBuffer(totalFrames * numChannels * 4)
	for i := range out {
		out[i] = 0
	}

	base := guardBefore * numChannels * 4
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[base+i*4:], math.Float32bits(s))
	}
	return out
}
