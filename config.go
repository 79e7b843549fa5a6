package supersonic

import "time"

// Mode selects the transport the supervisor builds: shared memory with
// atomics (the cross-origin-isolated fast path) or message ports (the
// fallback available everywhere).
type Mode int

const (
	ModeSharedMemory Mode = iota
	ModeMessagePort
)

// Config is the public, user-facing configuration for a Supervisor. It
// maps directly onto the configuration parameters a caller can tune, with
// the same role as the teacher's DeviceParams: the one struct that flows
// from caller intent into the internals' fixed layout and defaults.
type Config struct {
	Mode Mode

	BypassLookahead      time.Duration
	PreschedulerCapacity int
	SnapshotInterval     time.Duration
	MaxRetries           int
	RetryBaseDelay       time.Duration
	MaxSpins             int

	EngineHeapSize int
	BufferPoolSize int
	MaxBuffers     int

	MirrorRegionSize  int
	CaptureRegionSize int
}

// DefaultConfig returns the configuration the supervisor uses when the
// caller does not override a field, matching the defaults fixed in
// internal/constants.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeSharedMemory,
		BypassLookahead:      time.Duration(DefaultBypassLookaheadS * float64(time.Second)),
		PreschedulerCapacity: DefaultPreschedulerCapacity,
		SnapshotInterval:     DefaultSnapshotIntervalMs * time.Millisecond,
		MaxRetries:           DefaultMaxRetries,
		RetryBaseDelay:       DefaultRetryBaseDelayMs * time.Millisecond,
		MaxSpins:             DefaultMaxSpins,
		BufferPoolSize:       16 * 1024 * 1024,
		MaxBuffers:           DefaultMaxBuffers,
	}
}
