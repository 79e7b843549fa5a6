// Package ntptime maintains the shared wall-clock anchor that lets the
// dispatch plane translate an AudioContext-relative time into the NTP
// timeline carried on OSC bundle timestamps, and back. The anchor itself
// is a pair of atomically-published floats (no mutex on the hot read
// path), the same load/store-without-lock shape the teacher uses for its
// descriptor reads in internal/queue/runner.go.
package ntptime

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/samaaron/supersonic-go/internal/osc"
)

// Anchor maps an external monotonic clock (the simulated AudioContext
// clock) onto the shared NTP timeline. audioTimeAtAnchor and ntpAtAnchor
// are sampled together at resync time; NowNtp extrapolates from there.
type Anchor struct {
	nowAudioTime func() float64 // seconds, monotonic, supplied by caller

	established atomic.Bool
	audioAtSync atomic.Uint64 // math.Float64bits
	ntpAtSync   atomic.Uint64 // math.Float64bits (seconds since NTP epoch)
}

// NewAnchor creates an unestablished Anchor. nowAudioTime must return a
// monotonically increasing number of seconds; until Resync is called,
// NowNtp reports ok=false.
func NewAnchor(nowAudioTime func() float64) *Anchor {
	return &Anchor{nowAudioTime: nowAudioTime}
}

// Resync re-anchors the mapping at the current audio time and the given
// wall-clock NTP time (seconds since the NTP epoch).
func (a *Anchor) Resync(ntpNowSeconds float64) {
	a.audioAtSync.Store(math.Float64bits(a.nowAudioTime()))
	a.ntpAtSync.Store(math.Float64bits(ntpNowSeconds))
	a.established.Store(true)
}

// NowNtp implements osc.Clock: it reports the current point on the shared
// NTP timeline, or ok=false if Resync has never been called.
func (a *Anchor) NowNtp() (osc.NtpTimestamp, bool) {
	if !a.established.Load() {
		return osc.NtpTimestamp{}, false
	}
	audioAtSync := math.Float64frombits(a.audioAtSync.Load())
	ntpAtSync := math.Float64frombits(a.ntpAtSync.Load())

	elapsed := a.nowAudioTime() - audioAtSync
	return osc.NtpFromSeconds64(ntpAtSync + elapsed), true
}

// Established reports whether Resync has ever succeeded.
func (a *Anchor) Established() bool {
	return a.established.Load()
}

// SystemNtpNow returns the current wall-clock time expressed as NTP
// seconds (seconds since 1900-01-01, the NTP epoch).
func SystemNtpNow() float64 {
	const ntpUnixEpochDeltaSeconds = 2208988800
	return float64(time.Now().UnixNano())/1e9 + ntpUnixEpochDeltaSeconds
}
