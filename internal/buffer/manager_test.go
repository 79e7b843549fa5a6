package buffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu       sync.Mutex
	requests []string
	autoConfirm bool
	mgr         *Manager
	fail        bool
}

func (n *fakeNotifier) RequestAllocation(uuid string, bufnum uint32, ptr, sizeBytes int) error {
	n.mu.Lock()
	n.requests = append(n.requests, uuid)
	n.mu.Unlock()
	if n.fail {
		return errors.New("notifier: send failed")
	}
	if n.autoConfirm {
		go n.mgr.HandleBufferAllocated(uuid, bufnum)
	}
	return nil
}

type fakeDecoder struct {
	info SampleInfo
	err  error
}

func (d *fakeDecoder) Decode(raw []byte) (SampleInfo, error) {
	if d.err != nil {
		return SampleInfo{}, d.err
	}
	info := d.info
	info.Hash = hashBytes(raw)
	return info, nil
}

type fakeLoader struct {
	data map[string][]byte
}

func (l *fakeLoader) Load(path string) ([]byte, error) {
	if b, ok := l.data[path]; ok {
		return b, nil
	}
	return nil, errors.New("loader: not found")
}

func newTestManager(t *testing.T, autoConfirm bool) (*Manager, *fakeNotifier) {
	t.Helper()
	n := &fakeNotifier{autoConfirm: autoConfirm}
	m := New(Config{
		PoolSize:    4096,
		MaxBuffers:  8,
		EmptyTimeout: 200 * time.Millisecond,
		BlobTimeout:  200 * time.Millisecond,
		FileTimeout:  200 * time.Millisecond,
		Notifier: n,
		Decoder:  &fakeDecoder{info: SampleInfo{NumFrames: 100, NumChannels: 2, SampleRate: 44100}},
		Loader:   &fakeLoader{data: map[string][]byte{"a.wav": []byte("fake-wav-bytes")}},
	})
	n.mgr = m
	return m, n
}

func TestPrepareEmptyAllocatesGuardedSize(t *testing.T) {
	m, _ := newTestManager(t, true)
	rec, err := m.PrepareEmpty(context.Background(), 1, 100, 2, 44100)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.NumFrames)
	assert.Equal(t, (100+3+1)*2*4, rec.SizeBytes)
}

func TestPrepareFromPathDecodesAndHashes(t *testing.T) {
	m, _ := newTestManager(t, true)
	rec, err := m.PrepareFromPath(context.Background(), 2, "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "a.wav", rec.Source)
	assert.NotEmpty(t, rec.Hash)
}

func TestPrepareFromPathMissingFileFails(t *testing.T) {
	m, _ := newTestManager(t, true)
	_, err := m.PrepareFromPath(context.Background(), 2, "missing.wav")
	assert.Error(t, err)
}

func TestPrepareTimesOutWithoutConfirmation(t *testing.T) {
	m, _ := newTestManager(t, false)
	_, err := m.PrepareEmpty(context.Background(), 3, 10, 1, 44100)
	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestPrepareTimeoutFreesPoolSpace(t *testing.T) {
	m, _ := newTestManager(t, false)
	before := m.GetStats().AvailableBytes
	_, err := m.PrepareEmpty(context.Background(), 3, 10, 1, 44100)
	require.Error(t, err)
	assert.Equal(t, before, m.GetStats().AvailableBytes)
}

func TestPoolExhaustionDuringReplacementLeavesPriorUntouched(t *testing.T) {
	m, _ := newTestManager(t, true)
	first, err := m.PrepareEmpty(context.Background(), 5, 50, 1, 44100)
	require.NoError(t, err)

	_, err = m.PrepareEmpty(context.Background(), 5, 999999, 1, 44100)
	require.Error(t, err)

	rec, ok := m.GetAllocatedBuffers()[5]
	require.True(t, ok)
	assert.Equal(t, first.Ptr, rec.Ptr)
}

func TestPendingReplacementTimeoutRestoresPriorAllocation(t *testing.T) {
	m, n := newTestManager(t, true)
	first, err := m.PrepareEmpty(context.Background(), 5, 50, 1, 44100)
	require.NoError(t, err)

	n.autoConfirm = false
	_, err = m.PrepareEmpty(context.Background(), 5, 40, 1, 44100)
	assert.ErrorIs(t, err, ErrTimedOut)

	bufs := m.GetAllocatedBuffers()
	rec, ok := bufs[5]
	require.True(t, ok, "slot should be restored to the prior allocation, not left empty")
	assert.Equal(t, first.Ptr, rec.Ptr)
	assert.Equal(t, first.SizeBytes, rec.SizeBytes)
}

func TestHandleBufferFreedRemovesRecordAndFreesPool(t *testing.T) {
	m, _ := newTestManager(t, true)
	rec, err := m.PrepareEmpty(context.Background(), 6, 50, 1, 44100)
	require.NoError(t, err)

	before := m.GetStats().AvailableBytes
	m.HandleBufferFreed(6, rec.Ptr)
	after := m.GetStats().AvailableBytes
	assert.Greater(t, after, before)

	_, ok := m.GetAllocatedBuffers()[6]
	assert.False(t, ok)
}

func TestSlotExclusivitySerializesConcurrentPrepares(t *testing.T) {
	m, n := newTestManager(t, true)
	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.PrepareEmpty(context.Background(), 7, 10, 1, 44100)
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, n.requests, 10)
}

func TestTooManyBuffersRejected(t *testing.T) {
	m, _ := newTestManager(t, true)
	for i := uint32(0); i < 8; i++ {
		_, err := m.PrepareEmpty(context.Background(), i, 1, 1, 44100)
		require.NoError(t, err)
	}
	_, err := m.PrepareEmpty(context.Background(), 8, 1, 1, 44100)
	assert.ErrorIs(t, err, ErrTooManyBuffers)
}

func TestDestroyRejectsOutstandingOps(t *testing.T) {
	m, _ := newTestManager(t, false)
	done := make(chan error, 1)
	go func() {
		_, err := m.PrepareEmpty(context.Background(), 1, 10, 1, 44100)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	m.Destroy()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDestroyed)
	case <-time.After(time.Second):
		t.Fatal("expected destroy to settle the outstanding prepare")
	}
}

func TestSampleInfoDoesNotAllocate(t *testing.T) {
	m, _ := newTestManager(t, true)
	before := m.GetStats().AvailableBytes
	info, err := m.SampleInfo([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, 100, info.NumFrames)
	assert.Equal(t, before, m.GetStats().AvailableBytes)
}
