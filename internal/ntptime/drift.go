package ntptime

import (
	"context"
	"math"
	"time"

	"github.com/samaaron/supersonic-go/internal/constants"
)

// DriftMonitor periodically compares the anchor's extrapolated NTP time
// against a fresh wall-clock sample and reports the discrepancy, resyncing
// automatically whenever it exceeds the threshold. Modeled on the
// teacher's dedicated per-queue ioLoop goroutine: one goroutine, one
// purpose, stopped via context cancellation rather than a separate Stop
// channel.
type DriftMonitor struct {
	anchor    *Anchor
	threshold float64 // seconds
	onDrift   func(deltaSeconds float64)
}

// NewDriftMonitor creates a monitor for anchor. onDrift, if non-nil, is
// called every tick with the measured drift in seconds (signed: positive
// means the anchor is running ahead of wall-clock truth).
func NewDriftMonitor(anchor *Anchor, thresholdSeconds float64, onDrift func(float64)) *DriftMonitor {
	return &DriftMonitor{anchor: anchor, threshold: thresholdSeconds, onDrift: onDrift}
}

// Run blocks, ticking at constants.DriftCheckInterval, until ctx is
// cancelled.
func (d *DriftMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.DriftCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *DriftMonitor) tick() {
	if !d.anchor.Established() {
		return
	}
	now, ok := d.anchor.NowNtp()
	if !ok {
		return
	}
	wallNow := SystemNtpNow()
	drift := now.Seconds64() - wallNow
	if d.onDrift != nil {
		d.onDrift(drift)
	}
	if math.Abs(drift) > d.threshold {
		d.anchor.Resync(wallNow)
	}
}
