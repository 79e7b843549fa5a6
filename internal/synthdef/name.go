// Package synthdef extracts just the name of the first definition in a
// compiled synthdef binary. Full synthdef parsing (ugen graphs, constants,
// parameter specs) is out of scope: the dispatch plane only needs the
// name to track what is loaded for reload re-materialization, never the
// graph itself.
package synthdef

import (
	"encoding/binary"
	"errors"
)

var magic = [4]byte{'S', 'C', 'g', 'f'}

// ErrBadMagic is returned when raw does not begin with the SCgf magic.
var ErrBadMagic = errors.New("synthdef: missing SCgf magic")

// ErrTruncated is returned when raw ends before a complete name can be
// read.
var ErrTruncated = errors.New("synthdef: truncated before first def name")

// ErrNoDefs is returned when the file declares zero definitions.
var ErrNoDefs = errors.New("synthdef: file declares no definitions")

// Name extracts the name of the first synthdef in a compiled binary:
// 4-byte "SCgf" magic, 4-byte version, 2-byte def count, then for the
// first def a 1-byte-length-prefixed name string.
func Name(raw []byte) (string, error) {
	if len(raw) < 10 {
		return "", ErrTruncated
	}
	var m [4]byte
	copy(m[:], raw[:4])
	if m != magic {
		return "", ErrBadMagic
	}

	numDefs := binary.BigEndian.Uint16(raw[8:10])
	if numDefs == 0 {
		return "", ErrNoDefs
	}

	if len(raw) < 11 {
		return "", ErrTruncated
	}
	nameLen := int(raw[10])
	if len(raw) < 11+nameLen {
		return "", ErrTruncated
	}
	return string(raw[11 : 11+nameLen]), nil
}
