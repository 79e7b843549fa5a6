package buffer

// PreviousAllocation captures a slot's prior allocation while a
// replacement is in flight, so a failed replacement can restore it intact.
type PreviousAllocation struct {
	Ptr       int
	SizeBytes int
}

// Record is the per-bufnum allocation bookkeeping entry.
type Record struct {
	Bufnum      uint32
	Ptr         int
	SizeBytes   int // includes guard frames
	NumFrames   int // excludes guard frames
	NumChannels int
	SampleRate  int
	Source      string // path, "blob", or "" for an empty buffer
	Hash        string

	PendingToken string
	Previous     *PreviousAllocation
}

func guardedByteSize(numFrames, numChannels, guardBefore, guardAfter int) int {
	totalFrames := numFrames + guardBefore + guardAfter
	return alignUp(totalFrames * numChannels * 4) // 32-bit float samples
}
