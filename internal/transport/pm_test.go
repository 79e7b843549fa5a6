package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBatchRoundTrips(t *testing.T) {
	entries := []Entry{
		{SourceID: 1, Payload: []byte("hello")},
		{SourceID: 2, Payload: []byte{}},
		{SourceID: 3, Payload: []byte("world!!")},
	}

	raw := EncodeBatch(entries)
	decoded, err := DecodeBatch(raw)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
}

func TestDecodeBatchEmptyInput(t *testing.T) {
	decoded, err := DecodeBatch(nil)
	assert.Nil(t, decoded)
	assert.ErrorIs(t, err, ErrTruncatedBatch)
}

func TestDecodeBatchTruncatedPayload(t *testing.T) {
	raw := EncodeBatch([]Entry{{SourceID: 1, Payload: []byte("hello")}})
	_, err := DecodeBatch(raw[:len(raw)-2])
	assert.ErrorIs(t, err, ErrTruncatedBatch)
}

func TestMessagePortSendDeliversOneEntryBatch(t *testing.T) {
	a, b := NewPortPair(4)
	mp := NewMessagePort(a, nil)

	require.NoError(t, mp.Send(context.Background(), 7, []byte("payload")))

	select {
	case raw := <-b.Recv():
		entries, err := DecodeBatch(raw)
		require.NoError(t, err)
		assert.Equal(t, []Entry{{SourceID: 7, Payload: []byte("payload")}}, entries)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestMessagePortStartDeliversBatchesToHandler(t *testing.T) {
	a, b := NewPortPair(4)

	received := make(chan []Entry, 1)
	mp := NewMessagePort(a, func(entries []Entry) {
		received <- entries
	})

	require.NoError(t, mp.Start(context.Background()))
	defer mp.Stop()

	b.Post(EncodeBatch([]Entry{{SourceID: 5, Payload: []byte("from-engine")}}))

	select {
	case entries := <-received:
		assert.Equal(t, []Entry{{SourceID: 5, Payload: []byte("from-engine")}}, entries)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler invocation")
	}
}

func TestMessagePortStopClosesPort(t *testing.T) {
	a, b := NewPortPair(4)
	mp := NewMessagePort(a, func([]Entry) {})

	require.NoError(t, mp.Start(context.Background()))
	require.NoError(t, mp.Stop())

	done := make(chan struct{})
	go func() {
		b.Post([]byte("ignored"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post on peer of closed port blocked")
	}
}
