// Package engine defines the boundary between the dispatch plane and the
// audio engine that actually consumes OSC frames, the same separation the
// teacher draws with its Backend/Logger/Observer trio in
// internal/interfaces/backend.go: small interfaces at the edge of the
// package graph so concrete implementations (a real WASM engine, or a
// MockEngine for tests) can be swapped without internal packages importing
// each other directly.
package engine

import "context"

// Engine is the consumer on the other end of the IN ring and the producer
// on the OUT and DEBUG rings. A real implementation drives the WASM audio
// graph; MockEngine in mock.go stands in for it in tests.
type Engine interface {
	// HandleFrame is called once per dispatched OSC packet, already
	// classified and (if it was a bundle) past the prescheduler.
	HandleFrame(ctx context.Context, sourceID uint32, payload []byte) error
	// Close releases any resources the engine holds.
	Close() error
}

// Logger is the narrow logging surface internal packages depend on,
// carried over unchanged from the teacher's own Logger interface.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// ProcessCounter is implemented by engines that expose a monotonically
// increasing process-block counter. The supervisor samples it twice
// across a resume to confirm the audio host is actually pulling blocks
// again rather than merely reporting a resumed AudioContext state.
type ProcessCounter interface {
	ProcessCount() uint64
}

// SourceRegistrar is implemented by engines that must acknowledge a new
// channel's sourceId before it may safely send. The supervisor blocks
// CreateChannel on this call, closing the registration-ordering race
// spec.md leaves open rather than accepting a silent early-send drop.
type SourceRegistrar interface {
	RegisterSource(sourceID uint32) error
}

// Observer receives dispatch-plane telemetry. Implementations must be
// thread-safe: methods are called from worker goroutines and the
// prescheduler's timer callback, never only from one place, the same
// constraint the teacher documents on its own Observer interface.
type Observer interface {
	ObserveDispatch(category string, latencyNs uint64)
	ObserveDrop(ring string, count uint32)
	ObserveScheduleDepth(depth uint32)
	ObserveBufferOp(kind string, bytes uint64, success bool)
}
