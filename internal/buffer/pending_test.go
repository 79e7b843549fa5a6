package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortDurations() durations {
	return durations{blob: 20 * time.Millisecond, file: 20 * time.Millisecond, empty: 20 * time.Millisecond}
}

func TestPendingTableResolveSettlesHandle(t *testing.T) {
	pt := newPendingTable(durations{blob: time.Second, file: time.Second, empty: time.Second})
	uuid, h := pt.register(5, KindBlob, func(string) {})

	bufnum, ok := pt.resolve(uuid)
	require.True(t, ok)
	assert.Equal(t, uint32(5), bufnum)

	<-h.Done()
	assert.NoError(t, h.Err())
}

func TestPendingTableResolveUnknownUUIDFails(t *testing.T) {
	pt := newPendingTable(durations{blob: time.Second, file: time.Second, empty: time.Second})
	_, ok := pt.resolve("not-a-real-uuid")
	assert.False(t, ok)
}

func TestPendingTableTimesOut(t *testing.T) {
	pt := newPendingTable(shortDurations())
	fired := make(chan string, 1)
	_, h := pt.register(1, KindEmpty, func(uuid string) { fired <- uuid })

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("expected timeout to settle the handle")
	}
	assert.ErrorIs(t, h.Err(), ErrTimedOut)
	select {
	case <-fired:
	default:
		t.Fatal("expected onTimeout callback to fire")
	}
}

func TestPendingTableResolveAfterTimeoutIsNoop(t *testing.T) {
	pt := newPendingTable(shortDurations())
	uuid, h := pt.register(1, KindEmpty, func(string) {})
	<-h.Done()

	_, ok := pt.resolve(uuid)
	assert.False(t, ok)
}

func TestPendingTableRejectAll(t *testing.T) {
	pt := newPendingTable(durations{blob: time.Second, file: time.Second, empty: time.Second})
	_, h1 := pt.register(1, KindBlob, func(string) {})
	_, h2 := pt.register(2, KindFile, func(string) {})

	uuids := pt.rejectAll(ErrDestroyed)
	assert.Len(t, uuids, 2)

	<-h1.Done()
	<-h2.Done()
	assert.ErrorIs(t, h1.Err(), ErrDestroyed)
	assert.ErrorIs(t, h2.Err(), ErrDestroyed)
}
