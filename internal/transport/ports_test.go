package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortPairDeliversPostedMessages(t *testing.T) {
	a, b := NewPortPair(4)

	a.Post([]byte("hello"))
	select {
	case msg := <-b.Recv():
		assert.Equal(t, []byte("hello"), msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPortPairIsBidirectional(t *testing.T) {
	a, b := NewPortPair(4)

	b.Post([]byte("reply"))
	select {
	case msg := <-a.Recv():
		assert.Equal(t, []byte("reply"), msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPortClosePreventsFurtherPosts(t *testing.T) {
	a, b := NewPortPair(1)
	a.Close()

	done := make(chan struct{})
	go func() {
		a.Post([]byte("dropped"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post blocked after Close")
	}

	select {
	case <-b.Recv():
		t.Fatal("expected no message to arrive after Close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPortCloseIsIdempotent(t *testing.T) {
	a, _ := NewPortPair(1)
	require.NotPanics(t, func() {
		a.Close()
		a.Close()
	})
}
