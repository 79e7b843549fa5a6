// Package osc implements the narrow slice of OSC handling this dispatch
// plane owns at its boundary: bundle classification and extracting just
// enough structure (address strings, NTP timestamps) to route and denylist
// packets. Full OSC wire encoding/decoding is an external collaborator —
// this package never builds or parses argument payloads, only the bytes
// needed for dispatch decisions.
package osc

import (
	"encoding/binary"

	"github.com/samaaron/supersonic-go/internal/constants"
)

// NtpTimestamp is the 64-bit NTP fixed-point timestamp carried at bytes
// 8..16 of a bundle packet, big-endian on the wire.
type NtpTimestamp struct {
	Seconds  uint32
	Fraction uint32
}

// IsImmediate reports whether this timestamp means "execute immediately"
// (seconds 0, fraction 0 or 1).
func (t NtpTimestamp) IsImmediate() bool {
	return t.Seconds == 0 && (t.Fraction == 0 || t.Fraction == 1)
}

// Seconds64 converts the fixed-point timestamp to floating-point seconds
// since the NTP epoch.
func (t NtpTimestamp) Seconds64() float64 {
	return float64(t.Seconds) + float64(t.Fraction)/4294967296.0
}

// NtpFromSeconds64 is the inverse of Seconds64, used when the anchor/clock
// needs to stamp a timestamp back onto the wire.
func NtpFromSeconds64(s float64) NtpTimestamp {
	if s < 0 {
		s = 0
	}
	sec := uint32(s)
	frac := uint32((s - float64(sec)) * 4294967296.0)
	return NtpTimestamp{Seconds: sec, Fraction: frac}
}

// IsBundle reports whether raw begins with the "#bundle\0" magic and is
// long enough to contain a timestamp.
func IsBundle(raw []byte) bool {
	if len(raw) < constants.BundleMinLength {
		return false
	}
	return string(raw[:8]) == constants.BundleMagic
}

// BundleTimestamp reads the NTP timestamp from a packet already known to
// satisfy IsBundle.
func BundleTimestamp(raw []byte) NtpTimestamp {
	return NtpTimestamp{
		Seconds:  binary.BigEndian.Uint32(raw[8:12]),
		Fraction: binary.BigEndian.Uint32(raw[12:16]),
	}
}
