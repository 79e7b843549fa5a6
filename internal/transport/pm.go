package transport

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/samaaron/supersonic-go/internal/scratch"
)

// Entry is one frame inside a batched PM-mode reply.
type Entry struct {
	SourceID uint32
	Payload  []byte
}

// ErrTruncatedBatch is returned by DecodeBatch when raw ends before a
// complete entry can be read.
var ErrTruncatedBatch = errors.New("transport: truncated batch")

// EncodeBatch packs entries into the single buffer the worklet posts back
// across its one message port in PM mode, avoiding one postMessage per
// frame: [count u32][{sourceId u32, len u32, payload...} ...], the same
// length-prefixed shape internal/ring uses for its frame header.
func EncodeBatch(entries []Entry) []byte {
	size := 4
	for _, e := range entries {
		size += 4 + 4 + len(e.Payload)
	}
	buf := scratch.GetBuffer(size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(entries)))
	off := 4
	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[off:off+4], e.SourceID)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(len(e.Payload)))
		copy(buf[off+8:], e.Payload)
		off += 8 + len(e.Payload)
	}
	return buf
}

// DecodeBatch is the inverse of EncodeBatch.
func DecodeBatch(raw []byte) ([]Entry, error) {
	if len(raw) < 4 {
		return nil, ErrTruncatedBatch
	}
	count := binary.LittleEndian.Uint32(raw[0:4])
	entries := make([]Entry, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+8 > len(raw) {
			return nil, ErrTruncatedBatch
		}
		sourceID := binary.LittleEndian.Uint32(raw[off : off+4])
		length := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		off += 8
		if off+length > len(raw) {
			return nil, ErrTruncatedBatch
		}
		payload := make([]byte, length)
		copy(payload, raw[off:off+length])
		off += length
		entries = append(entries, Entry{SourceID: sourceID, Payload: payload})
	}
	return entries, nil
}

// BatchHandler receives one decoded batch of engine-originated entries.
type BatchHandler func(entries []Entry)

// MessagePort is the Facade variant for environments without
// cross-origin isolation: a single simulated worklet port carries
// everything, with replies arriving as batched, length-prefixed frames
// rather than one ring per stream.
type MessagePort struct {
	port    *Port
	onBatch BatchHandler
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMessagePort builds a MessagePort facade over port.
func NewMessagePort(port *Port, onBatch BatchHandler) *MessagePort {
	return &MessagePort{port: port, onBatch: onBatch, done: make(chan struct{})}
}

// Send implements Facade: a single raw packet, wrapped as a one-entry
// batch so the wire shape is uniform whether or not the caller coalesces.
func (m *MessagePort) Send(ctx context.Context, sourceID uint32, raw []byte) error {
	m.port.Post(EncodeBatch([]Entry{{SourceID: sourceID, Payload: raw}}))
	return nil
}

// Start implements Facade.
func (m *MessagePort) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.recvLoop(ctx)
	return nil
}

func (m *MessagePort) recvLoop(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-m.port.Recv():
			if !ok {
				return
			}
			entries, err := DecodeBatch(msg)
			scratch.PutBuffer(msg)
			if err != nil || m.onBatch == nil {
				continue
			}
			m.onBatch(entries)
		}
	}
}

// Stop implements Facade.
func (m *MessagePort) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.port.Close()
	<-m.done
	return nil
}
