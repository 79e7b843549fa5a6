package supersonic

import "github.com/samaaron/supersonic-go/internal/constants"

// Re-exported defaults for callers constructing a Config without pulling
// in the internal package directly.
const (
	DefaultBypassLookaheadS      = constants.DefaultBypassLookaheadS
	DefaultPreschedulerCapacity  = constants.DefaultPreschedulerCapacity
	DefaultSnapshotIntervalMs    = constants.DefaultSnapshotIntervalMs
	DefaultMaxRetries            = constants.DefaultMaxRetries
	DefaultRetryBaseDelayMs      = constants.DefaultRetryBaseDelayMs
	DefaultMaxSpins              = constants.DefaultMaxSpins

	WasmPageSize         = constants.WasmPageSize
	DefaultInRingSize    = constants.DefaultInRingSize
	DefaultOutRingSize   = constants.DefaultOutRingSize
	DefaultDebugRingSize = constants.DefaultDebugRingSize

	DefaultMaxBuffers = constants.DefaultMaxBuffers
)
