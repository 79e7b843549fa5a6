package buffer

import (
	"crypto/sha256"
	"encoding/hex"
)

// SampleInfo is the decoded shape of an audio payload, before any pool
// allocation happens.
type SampleInfo struct {
	NumFrames   int
	NumChannels int
	SampleRate  int
	Hash        string
	Samples     []float32 // interleaved, guard-free
}

// Decoder turns raw bytes (a file's or blob's contents) into interleaved
// float32 sample data. The dispatch plane has no business owning a codec
// library of its own; decoding is handed to whatever the host environment
// provides (the browser's own decodeAudioData in production, a fake in
// tests), so Decoder is intentionally just an interface here.
type Decoder interface {
	Decode(raw []byte) (SampleInfo, error)
}

// PathLoader resolves a path to raw bytes. In the browser this would be a
// fetch; here it is an injected seam so tests never touch a filesystem.
type PathLoader interface {
	Load(path string) ([]byte, error)
}

// hashBytes produces the content hash recorded alongside a decoded
// buffer, used to detect when a path/blob has already been loaded.
func hashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
