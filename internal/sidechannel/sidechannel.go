// Package sidechannel recognizes the handful of fixed-shape OSC messages
// the engine sends back toward the supervisor for local bookkeeping
// rather than for a subscriber: buffer lifecycle notifications and
// /synced replies. It is not a general OSC argument decoder — each
// address has exactly one fixed argument layout, read by direct offset
// the same way internal/mirror reads node-tree records by fixed offset
// instead of running a type-tag parser over them.
package sidechannel

import (
	"bytes"
	"encoding/binary"
)

// Addresses this package recognizes.
const (
	AddrBufferFreed     = "/supersonic/buffer/freed"
	AddrBufferAllocated = "/supersonic/buffer/allocated"
	AddrBufferAllocate  = "/supersonic/buffer/allocate"
	AddrSynced          = "/synced"
	AddrSync            = "/sync"
)

// BufferFreed is the decoded form of "/supersonic/buffer/freed bufnum ptr".
type BufferFreed struct {
	Bufnum uint32
	Ptr    int32
}

// BufferAllocated is the decoded form of
// "/supersonic/buffer/allocated uuid bufnum".
type BufferAllocated struct {
	UUID   string
	Bufnum uint32
}

// Synced is the decoded form of "/synced syncId".
type Synced struct {
	SyncID int32
}

// BufferAllocateRequest is the decoded form of the outbound
// "/supersonic/buffer/allocate uuid bufnum ptr sizeBytes" request the
// supervisor sends when the buffer manager needs the engine to
// materialize a pool allocation.
type BufferAllocateRequest struct {
	UUID      string
	Bufnum    uint32
	Ptr       int32
	SizeBytes int32
}

func paddedLen(n int) int {
	if rem := n % 4; rem != 0 {
		n += 4 - rem
	}
	return n
}

func readAddress(raw []byte) (string, int, bool) {
	if len(raw) == 0 || raw[0] != '/' {
		return "", 0, false
	}
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		return "", 0, false
	}
	return string(raw[:end]), paddedLen(end + 1), true
}

func skipTypeTag(raw []byte, off int) (int, bool) {
	if off >= len(raw) || raw[off] != ',' {
		return off, false
	}
	end := bytes.IndexByte(raw[off:], 0)
	if end < 0 {
		return off, false
	}
	return off + paddedLen(end+1), true
}

func readInt32(raw []byte, off int) (int32, int, bool) {
	if off+4 > len(raw) {
		return 0, off, false
	}
	return int32(binary.BigEndian.Uint32(raw[off : off+4])), off + 4, true
}

func readString(raw []byte, off int) (string, int, bool) {
	if off > len(raw) {
		return "", off, false
	}
	end := bytes.IndexByte(raw[off:], 0)
	if end < 0 {
		return "", off, false
	}
	return string(raw[off : off+end]), off + paddedLen(end+1), true
}

// ParseBufferFreed recognizes AddrBufferFreed with a ",ii" argument list.
func ParseBufferFreed(raw []byte) (BufferFreed, bool) {
	addr, off, ok := readAddress(raw)
	if !ok || addr != AddrBufferFreed {
		return BufferFreed{}, false
	}
	off, ok = skipTypeTag(raw, off)
	if !ok {
		return BufferFreed{}, false
	}
	bufnum, off, ok := readInt32(raw, off)
	if !ok {
		return BufferFreed{}, false
	}
	ptr, _, ok := readInt32(raw, off)
	if !ok {
		return BufferFreed{}, false
	}
	return BufferFreed{Bufnum: uint32(bufnum), Ptr: ptr}, true
}

// ParseBufferAllocated recognizes AddrBufferAllocated with a ",si"
// argument list.
func ParseBufferAllocated(raw []byte) (BufferAllocated, bool) {
	addr, off, ok := readAddress(raw)
	if !ok || addr != AddrBufferAllocated {
		return BufferAllocated{}, false
	}
	off, ok = skipTypeTag(raw, off)
	if !ok {
		return BufferAllocated{}, false
	}
	uuid, off, ok := readString(raw, off)
	if !ok {
		return BufferAllocated{}, false
	}
	bufnum, _, ok := readInt32(raw, off)
	if !ok {
		return BufferAllocated{}, false
	}
	return BufferAllocated{UUID: uuid, Bufnum: uint32(bufnum)}, true
}

// ParseSynced recognizes AddrSynced with a ",i" argument list.
func ParseSynced(raw []byte) (Synced, bool) {
	addr, off, ok := readAddress(raw)
	if !ok || addr != AddrSynced {
		return Synced{}, false
	}
	off, ok = skipTypeTag(raw, off)
	if !ok {
		return Synced{}, false
	}
	syncID, _, ok := readInt32(raw, off)
	if !ok {
		return Synced{}, false
	}
	return Synced{SyncID: syncID}, true
}

// ParseBufferAllocateRequest recognizes AddrBufferAllocate with a ",siii"
// argument list.
func ParseBufferAllocateRequest(raw []byte) (BufferAllocateRequest, bool) {
	addr, off, ok := readAddress(raw)
	if !ok || addr != AddrBufferAllocate {
		return BufferAllocateRequest{}, false
	}
	off, ok = skipTypeTag(raw, off)
	if !ok {
		return BufferAllocateRequest{}, false
	}
	uuid, off, ok := readString(raw, off)
	if !ok {
		return BufferAllocateRequest{}, false
	}
	bufnum, off, ok := readInt32(raw, off)
	if !ok {
		return BufferAllocateRequest{}, false
	}
	ptr, off, ok := readInt32(raw, off)
	if !ok {
		return BufferAllocateRequest{}, false
	}
	sizeBytes, _, ok := readInt32(raw, off)
	if !ok {
		return BufferAllocateRequest{}, false
	}
	return BufferAllocateRequest{UUID: uuid, Bufnum: uint32(bufnum), Ptr: ptr, SizeBytes: sizeBytes}, true
}

// EncodeBufferAllocateRequest builds the outbound allocate request.
func EncodeBufferAllocateRequest(uuid string, bufnum uint32, ptr, sizeBytes int) []byte {
	buf := encodeAddress(nil, AddrBufferAllocate)
	buf = encodeTypeTag(buf, "siii")
	buf = encodeString(buf, uuid)
	buf = encodeInt32(buf, int32(bufnum))
	buf = encodeInt32(buf, int32(ptr))
	buf = encodeInt32(buf, int32(sizeBytes))
	return buf
}

func encodeAddress(buf []byte, addr string) []byte {
	buf = append(buf, addr...)
	buf = append(buf, 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func encodeTypeTag(buf []byte, tag string) []byte {
	buf = append(buf, ',')
	buf = append(buf, tag...)
	buf = append(buf, 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func encodeInt32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func encodeString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// EncodeSync builds the outbound "/sync syncId" message the supervisor
// sends when Sync is called.
func EncodeSync(syncID int32) []byte {
	buf := encodeAddress(nil, AddrSync)
	buf = encodeTypeTag(buf, "i")
	buf = encodeInt32(buf, syncID)
	return buf
}

// EncodeSynced builds the "/synced syncId" reply a test double sends back.
func EncodeSynced(syncID int32) []byte {
	buf := encodeAddress(nil, AddrSynced)
	buf = encodeTypeTag(buf, "i")
	buf = encodeInt32(buf, syncID)
	return buf
}

// EncodeBufferFreed builds a "/supersonic/buffer/freed bufnum ptr" message.
func EncodeBufferFreed(bufnum uint32, ptr int32) []byte {
	buf := encodeAddress(nil, AddrBufferFreed)
	buf = encodeTypeTag(buf, "ii")
	buf = encodeInt32(buf, int32(bufnum))
	buf = encodeInt32(buf, ptr)
	return buf
}

// EncodeBufferAllocated builds a
// "/supersonic/buffer/allocated uuid bufnum" message.
func EncodeBufferAllocated(uuid string, bufnum uint32) []byte {
	buf := encodeAddress(nil, AddrBufferAllocated)
	buf = encodeTypeTag(buf, "si")
	buf = encodeString(buf, uuid)
	buf = encodeInt32(buf, int32(bufnum))
	return buf
}
