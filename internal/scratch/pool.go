// Package scratch hands out pooled byte slices for the short-lived
// buffers the dispatch plane needs while encoding or decoding OSC
// packets and batch frames, the same GetBuffer/PutBuffer shape the
// teacher's queue package uses for its I/O buffers, but backed by
// cloudwego/gopkg's size-class mempool instead of hand-rolled
// sync.Pool buckets.
package scratch

import "github.com/cloudwego/gopkg/cache/mempool"

// GetBuffer returns a scratch buffer of exactly size bytes. Its
// underlying capacity may be larger; callers that want to grow in place
// can resize up to Cap(buf).
func GetBuffer(size int) []byte {
	return mempool.Malloc(size)
}

// Cap returns the largest size GetBuffer's returned slice can be resized
// to without a new allocation.
func Cap(buf []byte) int {
	return mempool.Cap(buf)
}

// PutBuffer returns buf to the pool. Callers must not use buf again.
func PutBuffer(buf []byte) {
	mempool.Free(buf)
}
