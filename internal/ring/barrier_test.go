package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadNeverObservesPartialFrame runs a writer publishing frames through
// plain WriteSP calls and a reader spinning concurrently, to confirm the
// reader never observes a
// frame whose payload bytes disagree with its own header length (which
// would indicate a torn read across the head Store/Load pairing).
func TestReadNeverObservesPartialFrame(t *testing.T) {
	r, err := New(make([]byte, 4096))
	require.NoError(t, err)

	const frames = 2000
	stop := make(chan struct{})
	corrupt := make(chan string, 1)

	go func() {
		for i := 0; i < frames; i++ {
			payload := make([]byte, 8)
			for j := range payload {
				payload[j] = byte(i)
			}
			for {
				if err := r.WriteSP(1, payload); err == nil {
					break
				}
				time.Sleep(time.Microsecond)
			}
		}
		close(stop)
	}()

	go func() {
		for {
			fs := r.Read()
			for _, f := range fs {
				want := f.Payload[0]
				for _, b := range f.Payload {
					if b != want {
						select {
						case corrupt <- "torn frame observed":
						default:
						}
						return
					}
				}
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	<-stop
	// Drain whatever is left after the writer finishes.
	time.Sleep(time.Millisecond)
	r.Read()

	select {
	case msg := <-corrupt:
		t.Fatal(msg)
	default:
	}
	assert.True(t, true)
}
