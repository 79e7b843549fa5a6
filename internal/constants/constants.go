// Package constants holds default configuration values shared across the
// dispatch plane.
package constants

import "time"

// Transport defaults.
const (
	// DefaultBypassLookaheadS is the window inside which a bundle is
	// delivered directly instead of being held by the prescheduler.
	DefaultBypassLookaheadS = 0.2

	// DefaultPreschedulerCapacity bounds the prescheduler's pending heap.
	DefaultPreschedulerCapacity = 65536

	// DefaultSnapshotIntervalMs is how often PM-mode metrics are snapshotted
	// and posted to the supervisor.
	DefaultSnapshotIntervalMs = 50

	// DefaultMaxRetries bounds retry attempts for an IN-ring-full dispatch.
	DefaultMaxRetries = 8

	// DefaultRetryBaseDelayMs is the periodic retry-queue wakeup cadence.
	DefaultRetryBaseDelayMs = 10

	// DefaultMaxSpins bounds CAS spin attempts on the IN ring write-lock
	// for producers willing to spin (workers, not the main thread).
	DefaultMaxSpins = 64
)

// Shared-memory region sizes. Total memory must be a multiple of the
// WebAssembly page size.
const (
	WasmPageSize = 64 * 1024

	DefaultInRingSize    = 768 * 1024
	DefaultOutRingSize   = 128 * 1024
	DefaultDebugRingSize = 64 * 1024

	MetricsRegionSize  = 52
	NtpAnchorRegionSize = 8

	DefaultMirrorRegionSize  = 64 * 1024
	DefaultCaptureRegionSize = 256 * 1024
)

// Buffer-manager defaults.
const (
	GuardFramesBefore = 3
	GuardFramesAfter  = 1

	DefaultMaxBuffers = 4096

	BlobPrepareTimeout  = 30 * time.Second
	FilePrepareTimeout  = 60 * time.Second
	EmptyPrepareTimeout = 5 * time.Second
)

// Ring frame header layout, bit-exact across writers and readers.
const (
	FrameHeaderSize = 16
	FrameAlignment  = 8
)

// OSC bundle framing.
const (
	BundleMagic     = "#bundle\x00"
	BundleMinLength = 16
)

// SequenceGapSanityLimit is the largest gap a reader will count as dropped
// frames; larger gaps are assumed to be wraparound/corruption and ignored
// for counting purposes.
const SequenceGapSanityLimit = 1000

// DriftCheckInterval is the NTP drift-check cadence, roughly 1 Hz.
const DriftCheckInterval = time.Second
