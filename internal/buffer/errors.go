package buffer

import "errors"

// ErrUnknownBufnum is returned when an operation references a bufnum with
// no record.
var ErrUnknownBufnum = errors.New("buffer: unknown bufnum")

// ErrTooManyBuffers is returned by a prepare call that would exceed the
// configured slot limit.
var ErrTooManyBuffers = errors.New("buffer: too many buffers")

// ErrManagerDestroyed is returned by any call made after Destroy.
var ErrManagerDestroyed = errors.New("buffer: manager destroyed")
