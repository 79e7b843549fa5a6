package engine

import "errors"

// ErrEngineClosed is returned by HandleFrame once Close has been called.
var ErrEngineClosed = errors.New("engine: closed")

// ErrEngineFrameRejected is returned by MockEngine when a test has armed
// FailOn for the frame's address.
var ErrEngineFrameRejected = errors.New("engine: frame rejected")
