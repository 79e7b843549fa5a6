// Package transport provides the two concrete shapes the dispatch plane's
// send/receive path can take: a shared-memory ring variant (internal/ring
// plus internal/channel, atomics throughout) and a message-port variant
// for environments without cross-origin isolation. Both satisfy the same
// narrow Facade contract so the supervisor does not need to know which one
// it is driving.
package transport

import "context"

// Facade is the boundary the supervisor sends outbound packets through and
// receives engine-originated frames from, independent of the backing
// transport.
type Facade interface {
	// Send routes raw (already classified upstream by a Channel, or about
	// to be) out toward the engine for sourceID.
	Send(ctx context.Context, sourceID uint32, raw []byte) error
	// Start begins whatever background polling or receiving this variant
	// needs; it returns once pollers are running, not when ctx is done.
	Start(ctx context.Context) error
	// Stop releases transport resources. Safe to call once.
	Stop() error
}
