package osc

import "bytes"

// Address extracts the address pattern from a leaf OSC message: a
// NUL-terminated, 4-byte-padded string starting at byte 0. It does not
// parse the type tag or argument payload that follows — that belongs to the
// wire codec, which is out of scope here. Returns false if raw is a bundle
// or the address is malformed.
func Address(raw []byte) (string, bool) {
	if IsBundle(raw) {
		return "", false
	}
	if len(raw) == 0 || raw[0] != '/' {
		return "", false
	}
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		return "", false
	}
	return string(raw[:end]), true
}

// denylist is the set of engine commands that are meaningless in this
// environment: file-IO-based load/read/write operations and commands that
// would duplicate the prescheduler's own scheduling.
var denylist = map[string]struct{}{
	"/d_load":     {},
	"/d_loadDir":  {},
	"/b_read":     {},
	"/b_readChannel": {},
	"/b_write":    {},
	"/b_close":    {},
	"/clearSched": {},
	"/dumpOSC":    {},
	"/error":      {},
}

// IsDenylisted reports whether address is rejected at the send boundary.
func IsDenylisted(address string) bool {
	_, denied := denylist[address]
	return denied
}
