package supersonic

import (
	"errors"
	"fmt"
)

// Code categorizes a dispatch-plane error into one of the taxonomy buckets
// used for error-handling and reporting across the system.
type Code string

const (
	CodeCapabilityMissing Code = "capability missing"
	CodeProtocolDenied    Code = "protocol denied"
	CodeTransportTransient Code = "transport transient"
	CodeTransportFatal    Code = "transport fatal"
	CodeSchedulingOverflow Code = "scheduling overflow"
	CodeBufferLifecycle   Code = "buffer lifecycle"
	CodeEngineError       Code = "engine error"
	CodeHostLifecycle     Code = "host lifecycle"
)

// Error is a structured dispatch-plane error: the operation that failed,
// the taxonomy code it belongs to, and whatever it wraps. Modeled on the
// teacher's Error type (op/code/msg/inner, with Unwrap for errors.Is/As),
// generalized from device/queue identifiers to sourceId/bufnum.
type Error struct {
	Op       string
	Code     Code
	SourceID uint32 // 0 if not applicable
	Bufnum   uint32 // 0 if not applicable
	HasBufnum bool
	Msg      string
	Inner    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.HasBufnum:
		return fmt.Sprintf("supersonic: %s (op=%s bufnum=%d)", msg, e.Op, e.Bufnum)
	case e.SourceID != 0:
		return fmt.Sprintf("supersonic: %s (op=%s sourceId=%d)", msg, e.Op, e.SourceID)
	case e.Op != "":
		return fmt.Sprintf("supersonic: %s (op=%s)", msg, e.Op)
	default:
		return fmt.Sprintf("supersonic: %s", msg)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds a plain, op-scoped error.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewSourceError scopes an error to the producer that triggered it.
func NewSourceError(op string, sourceID uint32, code Code, msg string) *Error {
	return &Error{Op: op, SourceID: sourceID, Code: code, Msg: msg}
}

// NewBufferError scopes an error to a buffer slot.
func NewBufferError(op string, bufnum uint32, code Code, msg string) *Error {
	return &Error{Op: op, Bufnum: bufnum, HasBufnum: true, Code: code, Msg: msg}
}

// WrapError attaches op/code context to an existing error without losing
// it for errors.Is/As.
func WrapError(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if e, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: code, SourceID: e.SourceID, Bufnum: e.Bufnum, HasBufnum: e.HasBufnum, Msg: e.Msg, Inner: e}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err (or something it wraps) carries code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
