package osc

import "time"

// Category is the result of classifying a packet against the current NTP
// clock and the configured lookahead window.
type Category int

const (
	NonBundle Category = iota
	Immediate
	NearFuture
	Late
	FarFuture
)

func (c Category) String() string {
	switch c {
	case NonBundle:
		return "NonBundle"
	case Immediate:
		return "Immediate"
	case NearFuture:
		return "NearFuture"
	case Late:
		return "Late"
	case FarFuture:
		return "FarFuture"
	default:
		return "Unknown"
	}
}

// ShouldBypass reports whether category c takes the direct path rather than
// the prescheduler: everything except FarFuture.
func ShouldBypass(c Category) bool {
	return c != FarFuture
}

// Clock supplies the current point on the shared NTP timeline. ok is false
// when no anchor has been established yet (before init, or mid-resync).
type Clock interface {
	NowNtp() (now NtpTimestamp, ok bool)
}

// Classify implements the six-rule decision tree for bundle scheduling.
//
// Rule order matters: a non-bundle packet is classified before any
// timestamp is read (rule 1), an immediate sentinel short-circuits before
// the clock is even consulted (rule 2), and an unknown clock fails open to
// Immediate (rule 3) so that missing clock state never silently drops an
// audio command.
func Classify(raw []byte, clock Clock, lookahead time.Duration) Category {
	if !IsBundle(raw) {
		return NonBundle
	}

	ts := BundleTimestamp(raw)
	if ts.IsImmediate() {
		return Immediate
	}

	now, ok := clock.NowNtp()
	if !ok {
		return Immediate
	}

	delta := ts.Seconds64() - now.Seconds64()
	switch {
	case delta < 0:
		return Late
	case delta < lookahead.Seconds():
		return NearFuture
	default:
		return FarFuture
	}
}
