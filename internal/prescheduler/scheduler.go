package prescheduler

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/samaaron/supersonic-go/internal/osc"
)

// State is the prescheduler's wake-timer state. Exactly one timer is ever
// armed at a time; there is no per-bundle timer.
type State int

const (
	Idle State = iota
	Armed
	Dispatching
	RetryBacklog
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Armed:
		return "Armed"
	case Dispatching:
		return "Dispatching"
	case RetryBacklog:
		return "RetryBacklog"
	default:
		return "Unknown"
	}
}

// ErrCapacityExceeded is returned by Enqueue when the heap is already at
// preschedulerCapacity.
var ErrCapacityExceeded = errors.New("prescheduler: capacity exceeded")

// ErrClosed is returned by Enqueue after Close. The other public methods
// do nothing once the Scheduler is closed: the Cancel methods return 0 and
// Snapshot returns a zero Stats.
var ErrClosed = errors.New("prescheduler: closed")

// Writer is the destination a dispatched bundle is written to.
type Writer interface {
	WriteMP(sourceID uint32, payload []byte, maxSpins int) error
}

// Config configures a new Scheduler.
type Config struct {
	Capacity       int
	Lookahead      time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxSpins       int
	Writer         Writer
	Clock          osc.Clock
}

// Stats is a point-in-time snapshot of the prescheduler's counters.
//
// CurrentlyPending counts every bundle not yet resolved one way or another
// — both those still sitting in the heap and those sitting in the retry
// backlog — so that invariant I2 (Scheduled == Dispatched + Cancelled +
// RetriesFailed + CurrentlyPending) holds at every snapshot, not only once
// the system has drained to quiescence.
type Stats struct {
	Scheduled        uint64
	Dispatched       uint64
	Cancelled        uint64
	RetriesFailed    uint64
	RetriesSucceeded uint64
	RetryQueuePeak   uint64
	CurrentlyPending uint64
	MinHeadroomMs    float64 // math.MaxFloat64 if never dispatched
	State            State
}

// Scheduler is a min-heap prescheduler with a single demand-driven wake
// timer. All mutation happens on one goroutine (run); every exported
// method sends a command to it and waits for the command to be applied,
// giving callers synchronous semantics without needing their own lock.
type Scheduler struct {
	cfg Config

	cmds   chan func()
	done   chan struct{}
	closed atomic.Bool

	h       bundleHeap
	ix      *indexes
	retry   *retryQueue
	nextSeq uint64
	nextH   Handle

	timer      *time.Timer
	timerFires <-chan time.Time
	state      State

	scheduled        uint64
	dispatched       uint64
	cancelled        uint64
	retriesFailed    uint64
	retriesSucceeded uint64
	minHeadroomMs    float64
}

// New creates a Scheduler. Call Run in its own goroutine to start the
// event loop.
func New(cfg Config) *Scheduler {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 8
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 10 * time.Millisecond
	}
	s := &Scheduler{
		cfg:           cfg,
		cmds:          make(chan func(), 256),
		done:          make(chan struct{}),
		ix:            newIndexes(),
		retry:         newRetryQueue(cfg.Capacity),
		state:         Idle,
		minHeadroomMs: math.MaxFloat64,
	}
	return s
}

// Run is the single-threaded event loop; it blocks until ctx is cancelled
// or Close is called.
func (s *Scheduler) Run(ctx context.Context) {
	retryTicker := time.NewTicker(s.cfg.RetryBaseDelay)
	defer retryTicker.Stop()

	for {
		var timerC <-chan time.Time
		if s.timer != nil {
			timerC = s.timer.C
		}

		select {
		case <-ctx.Done():
			close(s.done)
			return
		case fn := <-s.cmds:
			fn()
		case <-timerC:
			s.dispatchDue()
		case <-retryTicker.C:
			s.retryTick()
		}
	}
}

func (s *Scheduler) exec(fn func()) {
	if s.closed.Load() {
		return
	}
	done := make(chan struct{})
	wrapped := func() { fn(); close(done) }
	select {
	case s.cmds <- wrapped:
		<-done
	case <-s.done:
	}
}

// Enqueue implements channel.Scheduler.
func (s *Scheduler) Enqueue(ctx context.Context, sourceID, sessionID uint32, runTag string, dueNtp osc.NtpTimestamp, payload []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	var err error
	s.exec(func() {
		if s.h.Len() >= s.cfg.Capacity {
			err = ErrCapacityExceeded
			return
		}
		cp := make([]byte, len(payload))
		copy(cp, payload)

		b := &pendingBundle{
			handle:    s.nextH,
			dueNtp:    dueNtp,
			seq:       s.nextSeq,
			sourceID:  sourceID,
			sessionID: sessionID,
			runTag:    runTag,
			payload:   cp,
		}
		s.nextH++
		s.nextSeq++

		wasEmpty := s.h.Len() == 0
		earliestBefore := s.earliest()

		heap.Push(&s.h, b)
		s.ix.add(b)
		s.scheduled++

		if wasEmpty {
			s.arm(b.dueNtp)
		} else if earliestBefore != nil && dueNtp.Seconds64() < earliestBefore.dueNtp.Seconds64() {
			s.arm(b.dueNtp) // preemption: an earlier bundle just arrived
		}
	})
	return err
}

func (s *Scheduler) earliest() *pendingBundle {
	if s.h.Len() == 0 {
		return nil
	}
	return s.h[0]
}

func (s *Scheduler) arm(due osc.NtpTimestamp) {
	if s.timer != nil {
		s.timer.Stop()
	}
	delay := s.delayUntil(due)
	s.timer = time.NewTimer(delay)
	s.state = Armed
}

func (s *Scheduler) delayUntil(due osc.NtpTimestamp) time.Duration {
	now, ok := s.cfg.Clock.NowNtp()
	if !ok {
		return 0
	}
	deltaSeconds := due.Seconds64() - now.Seconds64() - s.cfg.Lookahead.Seconds()
	if deltaSeconds <= 0 {
		return 0
	}
	return time.Duration(deltaSeconds * float64(time.Second))
}

// dispatchDue fires when the armed timer expires: it pops and writes
// every bundle whose due time has arrived, then re-arms for whatever is
// left.
func (s *Scheduler) dispatchDue() {
	s.state = Dispatching
	now, _ := s.cfg.Clock.NowNtp()

	for s.h.Len() > 0 {
		b := s.h[0]
		if s.cfg.Clock != nil {
			delay := s.delayUntil(b.dueNtp)
			if delay > 0 {
				break
			}
		}
		heap.Pop(&s.h)
		s.ix.remove(b)
		s.dispatchOne(b, now)
	}

	if s.h.Len() > 0 {
		s.arm(s.h[0].dueNtp)
	} else {
		s.timer = nil
		if s.retry.len() > 0 {
			s.state = RetryBacklog
		} else {
			s.state = Idle
		}
	}
}

func (s *Scheduler) dispatchOne(b *pendingBundle, dispatchedAt osc.NtpTimestamp) {
	if err := s.cfg.Writer.WriteMP(b.sourceID, b.payload, s.cfg.MaxSpins); err != nil {
		if !s.retry.push(b, time.Now()) {
			s.retriesFailed++
		}
		return
	}
	s.dispatched++
	headroomMs := (dispatchedAt.Seconds64() - b.dueNtp.Seconds64() + s.cfg.Lookahead.Seconds()) * 1000
	if headroomMs < s.minHeadroomMs {
		s.minHeadroomMs = headroomMs
	}
}

func (s *Scheduler) retryTick() {
	entries := s.retry.drain()
	for _, e := range entries {
		if err := s.cfg.Writer.WriteMP(e.bundle.sourceID, e.bundle.payload, s.cfg.MaxSpins); err != nil {
			if !s.retry.requeue(e, s.cfg.MaxRetries) {
				s.retriesFailed++
			}
			continue
		}
		s.dispatched++
		s.retriesSucceeded++
	}
	if s.retry.len() == 0 && s.h.Len() == 0 && s.state == RetryBacklog {
		s.state = Idle
	}
}

// cancelMatching removes every handle in matches from the heap and
// indexes, re-arming or idling the timer if the earliest entry changed.
func (s *Scheduler) cancelMatching(matches map[Handle]struct{}) int {
	if len(matches) == 0 {
		return 0
	}
	prevEarliest := s.earliest()

	var kept bundleHeap
	for _, b := range s.h {
		if _, hit := matches[b.handle]; hit {
			s.ix.remove(b)
			continue
		}
		kept = append(kept, b)
	}
	s.h = kept
	heap.Init(&s.h)

	if s.h.Len() == 0 {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.state = Idle
	} else if prevEarliest == nil || s.h[0].handle != prevEarliest.handle {
		s.arm(s.h[0].dueNtp)
	}

	return len(matches)
}

// CancelTag cancels every pending bundle with the given runTag.
func (s *Scheduler) CancelTag(tag string) int {
	var n int
	s.exec(func() {
		n = s.cancelMatching(s.ix.handlesForTag(tag))
		s.cancelled += uint64(n)
	})
	return n
}

// CancelSession cancels every pending bundle with the given sessionID.
func (s *Scheduler) CancelSession(session uint32) int {
	var n int
	s.exec(func() {
		n = s.cancelMatching(s.ix.handlesForSession(session))
		s.cancelled += uint64(n)
	})
	return n
}

// CancelSessionTag cancels every pending bundle matching both sessionID
// and runTag.
func (s *Scheduler) CancelSessionTag(session uint32, tag string) int {
	var n int
	s.exec(func() {
		n = s.cancelMatching(s.ix.handlesForSessionTag(session, tag))
		s.cancelled += uint64(n)
	})
	return n
}

// CancelAll cancels every pending bundle.
func (s *Scheduler) CancelAll() int {
	var n int
	s.exec(func() {
		all := make(map[Handle]struct{}, s.h.Len())
		for _, b := range s.h {
			all[b.handle] = struct{}{}
		}
		n = s.cancelMatching(all)
		s.cancelled += uint64(n)
	})
	return n
}

// Purge clears the heap, indexes, and retry queue and idles the timer,
// for use on audio-host resume or supervisor reload.
func (s *Scheduler) Purge() {
	s.exec(func() {
		s.h = nil
		s.ix = newIndexes()
		s.retry = newRetryQueue(s.cfg.Capacity)
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.state = Idle
	})
}

// Snapshot returns the current counters and pending depth.
func (s *Scheduler) Snapshot() Stats {
	var st Stats
	s.exec(func() {
		st = Stats{
			Scheduled:        s.scheduled,
			Dispatched:       s.dispatched,
			Cancelled:        s.cancelled,
			RetriesFailed:    s.retriesFailed,
			RetriesSucceeded: s.retriesSucceeded,
			RetryQueuePeak:   uint64(s.retry.peak()),
			CurrentlyPending: uint64(s.h.Len()) + uint64(s.retry.len()),
			MinHeadroomMs:    s.minHeadroomMs,
			State:            s.state,
		}
	})
	return st
}

// Close stops accepting commands; Run's goroutine should also be
// cancelled via its context separately.
func (s *Scheduler) Close() {
	s.closed.Store(true)
}
