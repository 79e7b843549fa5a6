package prescheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samaaron/supersonic-go/internal/osc"
)

type fixedClock struct {
	mu  sync.Mutex
	now osc.NtpTimestamp
	ok  bool
}

func (c *fixedClock) NowNtp() (osc.NtpTimestamp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, c.ok
}

func (c *fixedClock) set(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = osc.NtpFromSeconds64(seconds)
}

type recordingWriter struct {
	mu     sync.Mutex
	writes []uint32
	fail   bool
}

func (w *recordingWriter) WriteMP(sourceID uint32, payload []byte, maxSpins int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return assert.AnError
	}
	w.writes = append(w.writes, sourceID)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func newTestScheduler(t *testing.T, clock *fixedClock, w *recordingWriter) (*Scheduler, context.CancelFunc) {
	t.Helper()
	s := New(Config{
		Capacity:       1024,
		Lookahead:      50 * time.Millisecond,
		MaxRetries:     4,
		RetryBaseDelay: 5 * time.Millisecond,
		MaxSpins:       8,
		Writer:         w,
		Clock:          clock,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return s, cancel
}

func TestEnqueueDispatchesWhenDue(t *testing.T) {
	clock := &fixedClock{ok: true}
	clock.set(1000.0)
	w := &recordingWriter{}
	s, cancel := newTestScheduler(t, clock, w)
	defer cancel()

	due := osc.NtpFromSeconds64(1000.05)
	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "", due, []byte("x")))

	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, time.Millisecond)

	stats := s.Snapshot()
	assert.Equal(t, uint64(1), stats.Dispatched)
	assert.Equal(t, uint64(0), stats.CurrentlyPending)
}

func TestPreemptionRearmsForEarlierBundle(t *testing.T) {
	clock := &fixedClock{ok: true}
	clock.set(0.0)
	w := &recordingWriter{}
	s, cancel := newTestScheduler(t, clock, w)
	defer cancel()

	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "far", osc.NtpFromSeconds64(2.0), []byte("A")))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Enqueue(context.Background(), 2, 0, "soon", osc.NtpFromSeconds64(0.3), []byte("B")))
	// The test clock does not advance on its own: move it past B's
	// dispatch point (0.3s due minus 50ms lookahead) but not A's.
	clock.set(0.26)

	assert.Eventually(t, func() bool { return w.count() == 1 }, 400*time.Millisecond, 5*time.Millisecond)

	stats := s.Snapshot()
	assert.Equal(t, uint64(1), stats.Dispatched)
	assert.Equal(t, uint64(1), stats.CurrentlyPending)

	n := s.CancelTag("far")
	assert.Equal(t, 1, n)
	stats = s.Snapshot()
	assert.Equal(t, uint64(0), stats.CurrentlyPending)
}

func TestCancelAllThenScheduleOneMore(t *testing.T) {
	clock := &fixedClock{ok: true}
	clock.set(0.0)
	w := &recordingWriter{}
	s, cancel := newTestScheduler(t, clock, w)
	defer cancel()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Enqueue(context.Background(), uint32(i), 0, "", osc.NtpFromSeconds64(10.0), []byte("x")))
	}
	n := s.CancelAll()
	assert.Equal(t, 10, n)

	stats := s.Snapshot()
	assert.Equal(t, uint64(0), stats.CurrentlyPending)
	assert.Equal(t, uint64(10), stats.Cancelled)

	require.NoError(t, s.Enqueue(context.Background(), 99, 0, "", osc.NtpFromSeconds64(0.2), []byte("y")))
	// The test clock does not advance on its own: move it past the
	// bundle's dispatch point (0.2s due minus 50ms lookahead).
	clock.set(0.16)
	assert.Eventually(t, func() bool { return w.count() == 1 }, 400*time.Millisecond, 5*time.Millisecond)

	stats = s.Snapshot()
	assert.Equal(t, uint64(1), stats.Dispatched)
	assert.Equal(t, uint64(0), stats.CurrentlyPending)
}

func TestCancelAllTwiceIsNoopSecondTime(t *testing.T) {
	clock := &fixedClock{ok: true}
	w := &recordingWriter{}
	s, cancel := newTestScheduler(t, clock, w)
	defer cancel()

	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "", osc.NtpFromSeconds64(100.0), []byte("x")))
	first := s.CancelAll()
	assert.Equal(t, 1, first)
	second := s.CancelAll()
	assert.Equal(t, 0, second)

	stats := s.Snapshot()
	assert.Equal(t, uint64(1), stats.Cancelled)
}

func TestCapacityExceeded(t *testing.T) {
	clock := &fixedClock{ok: true}
	w := &recordingWriter{}
	s := New(Config{Capacity: 1, Lookahead: time.Second, Writer: w, Clock: clock})
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	defer cancel()

	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "", osc.NtpFromSeconds64(1000.0), []byte("x")))
	err := s.Enqueue(context.Background(), 2, 0, "", osc.NtpFromSeconds64(1000.0), []byte("y"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestFullRingRetriesThenSucceeds(t *testing.T) {
	clock := &fixedClock{ok: true}
	clock.set(0.0)
	w := &recordingWriter{fail: true}
	s, cancel := newTestScheduler(t, clock, w)
	defer cancel()

	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "", osc.NtpFromSeconds64(0.05), []byte("x")))
	// Stay well inside the retry budget: 4 retries on a 5ms tick drop
	// the entry after about 25ms.
	time.Sleep(10 * time.Millisecond)

	w.mu.Lock()
	w.fail = false
	w.mu.Unlock()

	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, time.Millisecond)
}

func TestFullRingRetrySucceedsCountsRetriesSucceededAndPeak(t *testing.T) {
	clock := &fixedClock{ok: true}
	clock.set(0.0)
	w := &recordingWriter{fail: true}
	s, cancel := newTestScheduler(t, clock, w)
	defer cancel()

	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "", osc.NtpFromSeconds64(0.05), []byte("x")))
	// Stay well inside the retry budget: 4 retries on a 5ms tick drop
	// the entry after about 25ms.
	time.Sleep(10 * time.Millisecond)

	stats := s.Snapshot()
	assert.Equal(t, uint64(1), stats.RetryQueuePeak)
	assert.Equal(t, uint64(1), stats.CurrentlyPending, "a backlogged retry still counts as pending")

	w.mu.Lock()
	w.fail = false
	w.mu.Unlock()

	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, time.Millisecond)
	stats = s.Snapshot()
	assert.Equal(t, uint64(1), stats.RetriesSucceeded)
	assert.Equal(t, uint64(1), stats.Dispatched)
	assert.Equal(t, uint64(0), stats.CurrentlyPending)
}

func TestRetryQueueFullCountsAsFailedRetry(t *testing.T) {
	clock := &fixedClock{ok: true}
	clock.set(0.0)
	w := &recordingWriter{fail: true}
	s := New(Config{
		Capacity:       2,
		Lookahead:      10 * time.Millisecond,
		MaxRetries:     4,
		RetryBaseDelay: time.Hour, // never fires during this test
		MaxSpins:       4,
		Writer:         w,
		Clock:          clock,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	defer cancel()

	// Fill the retry queue to its capacity (2) with bundles whose first
	// dispatch attempt fails.
	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "", osc.NtpFromSeconds64(0.01), []byte("a")))
	require.NoError(t, s.Enqueue(context.Background(), 2, 0, "", osc.NtpFromSeconds64(0.01), []byte("b")))
	require.Eventually(t, func() bool { return s.Snapshot().RetryQueuePeak == 2 }, time.Second, time.Millisecond)

	// The heap has drained, so Enqueue accepts two more bundles; their
	// dispatch also fails, and since the retry queue is already full at
	// capacity, dispatchOne's push must count each as a failed retry
	// rather than dropping it silently.
	require.NoError(t, s.Enqueue(context.Background(), 3, 0, "", osc.NtpFromSeconds64(0.01), []byte("c")))
	require.NoError(t, s.Enqueue(context.Background(), 4, 0, "", osc.NtpFromSeconds64(0.01), []byte("d")))

	require.Eventually(t, func() bool { return s.Snapshot().RetriesFailed == 2 }, time.Second, time.Millisecond)
	stats := s.Snapshot()
	assert.Equal(t, uint64(4), stats.Scheduled)
	assert.Equal(t, uint64(2), stats.RetryQueuePeak)
}

func TestMultiplePreemptions(t *testing.T) {
	clock := &fixedClock{ok: true}
	clock.set(0.0)
	w := &recordingWriter{}
	s, cancel := newTestScheduler(t, clock, w)
	defer cancel()

	require.NoError(t, s.Enqueue(context.Background(), 1, 0, "t2s", osc.NtpFromSeconds64(2.0), []byte("A")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Enqueue(context.Background(), 2, 0, "t1s", osc.NtpFromSeconds64(1.0), []byte("B")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Enqueue(context.Background(), 3, 0, "t05s", osc.NtpFromSeconds64(0.5), []byte("C")))
	// The test clock does not advance on its own: step it past each
	// bundle's dispatch point (due minus 50ms lookahead) in turn.
	clock.set(0.46)

	assert.Eventually(t, func() bool { return w.count() == 1 }, 600*time.Millisecond, 5*time.Millisecond)
	clock.set(0.96)
	assert.Eventually(t, func() bool { return w.count() == 2 }, 1200*time.Millisecond, 5*time.Millisecond)

	n := s.CancelTag("t2s")
	assert.Equal(t, 1, n)
	stats := s.Snapshot()
	assert.Equal(t, uint64(0), stats.CurrentlyPending)
}
