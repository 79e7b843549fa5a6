package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samaaron/supersonic-go/internal/channel"
	"github.com/samaaron/supersonic-go/internal/ring"
)

// ErrUnknownSource is returned by Send when no Channel has been registered
// for sourceID.
var ErrUnknownSource = errors.New("transport: unknown source id")

// FrameHandler receives one drained frame's payload, plus how many
// sequence numbers were skipped immediately before it (dropped frames
// detected by the ring's gap check).
type FrameHandler func(sourceID uint32, payload []byte, dropped uint32)

// SharedMemory is the Facade variant backed by three rings and atomics:
// per-producer Channels write the IN ring directly or via the
// prescheduler worker, and two poller goroutines drain the OUT and DEBUG
// rings back out to callbacks. This is the same shape as the teacher's
// per-queue worker loop (internal/queue/runner.go) generalized from one
// loop per hardware queue to one poller per ring.
type SharedMemory struct {
	outRing, debugRing *ring.Ring
	pollInterval       time.Duration
	onOut, onDebug     FrameHandler

	mu       sync.RWMutex
	channels map[uint32]*channel.Channel

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSharedMemory builds a SharedMemory facade. onOut/onDebug may be nil if
// the caller does not care about one of the two streams.
func NewSharedMemory(outRing, debugRing *ring.Ring, pollInterval time.Duration, onOut, onDebug FrameHandler) *SharedMemory {
	return &SharedMemory{
		outRing: outRing, debugRing: debugRing,
		pollInterval: pollInterval,
		onOut:        onOut, onDebug: onDebug,
		channels: make(map[uint32]*channel.Channel),
	}
}

// Register binds a Channel to its sourceID so Send can route to it.
func (s *SharedMemory) Register(sourceID uint32, ch *channel.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[sourceID] = ch
}

// Send implements Facade.
func (s *SharedMemory) Send(ctx context.Context, sourceID uint32, raw []byte) error {
	s.mu.RLock()
	ch, ok := s.channels[sourceID]
	s.mu.RUnlock()
	if !ok {
		return ErrUnknownSource
	}
	return ch.Send(ctx, raw)
}

// Start implements Facade: launches the OUT and DEBUG pollers.
func (s *SharedMemory) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.pollLoop(ctx, s.outRing, s.onOut)

	s.wg.Add(1)
	go s.pollLoop(ctx, s.debugRing, s.onDebug)

	return nil
}

func (s *SharedMemory) pollLoop(ctx context.Context, r *ring.Ring, cb FrameHandler) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cb == nil {
				continue
			}
			for _, f := range r.Read() {
				cb(f.SourceID, f.Payload, f.Dropped)
			}
		}
	}
}

// Stop implements Facade.
func (s *SharedMemory) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}
