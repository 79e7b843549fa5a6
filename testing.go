package supersonic

import (
	"context"
	"time"

	"github.com/samaaron/supersonic-go/internal/channel"
	"github.com/samaaron/supersonic-go/internal/engine"
	"github.com/samaaron/supersonic-go/internal/osc"
	"github.com/samaaron/supersonic-go/internal/prescheduler"
	"github.com/samaaron/supersonic-go/internal/ring"
)

// Harness wires a ring, a prescheduler, a Channel and a MockEngine
// together for tests that exercise the send path end to end, the way the
// teacher's testing.go exposes a MockBackend wired into real Runner
// plumbing rather than a bare interface stub. Callers get a single Send
// entry point and can drain the ring themselves to see what arrived.
type Harness struct {
	Ring        *ring.Ring
	Scheduler   *prescheduler.Scheduler
	Channel     *channel.Channel
	MockEngine  *engine.MockEngine
	Metrics     *Metrics

	cancel context.CancelFunc
}

// HarnessConfig configures NewHarness; all fields are optional.
type HarnessConfig struct {
	RingSize  int
	Lookahead time.Duration
	Clock     osc.Clock
}

// NewHarness builds a ready-to-use Harness. The returned Harness owns a
// background goroutine running the prescheduler; call Close to stop it.
func NewHarness(cfg HarnessConfig) (*Harness, error) {
	if cfg.RingSize == 0 {
		cfg.RingSize = DefaultInRingSize
	}
	if cfg.Lookahead == 0 {
		cfg.Lookahead = 200 * time.Millisecond
	}

	r, err := ring.New(make([]byte, cfg.RingSize))
	if err != nil {
		return nil, err
	}

	sched := prescheduler.New(prescheduler.Config{
		Capacity:  DefaultPreschedulerCapacity,
		Lookahead: cfg.Lookahead,
		MaxSpins:  DefaultMaxSpins,
		Writer:    r,
		Clock:     cfg.Clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	ch := channel.New(channel.Config{
		SourceID:  1,
		Clock:     cfg.Clock,
		Lookahead: cfg.Lookahead,
		Writer:    r,
		Scheduler: sched,
		MaxSpins:  DefaultMaxSpins,
	})

	return &Harness{
		Ring:       r,
		Scheduler:  sched,
		Channel:    ch,
		MockEngine: engine.NewMockEngine(),
		Metrics:    NewMetrics(),
		cancel:     cancel,
	}, nil
}

// Drive reads every frame currently sitting in the ring and feeds it to
// the MockEngine, the way the real worklet drains the IN ring on its own
// schedule.
func (h *Harness) Drive(ctx context.Context) error {
	for _, f := range h.Ring.Read() {
		if err := h.MockEngine.HandleFrame(ctx, f.SourceID, f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the harness's background prescheduler goroutine and closes
// the mock engine.
func (h *Harness) Close() error {
	h.cancel()
	h.Channel.Close()
	h.Scheduler.Close()
	return h.MockEngine.Close()
}
