package buffer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samaaron/supersonic-go/internal/scratch"
)

// EngineNotifier sends the engine a request to materialize a buffer at a
// pool offset, keyed by the UUID the manager will later see echoed back in
// handleBufferAllocated.
type EngineNotifier interface {
	RequestAllocation(uuid string, bufnum uint32, ptr int, sizeBytes int) error
}

// Config configures a Manager.
type Config struct {
	PoolSize   int
	MaxBuffers int
	GuardBefore, GuardAfter int

	BlobTimeout, FileTimeout, EmptyTimeout time.Duration

	Notifier EngineNotifier
	Decoder  Decoder
	Loader   PathLoader
	Memory   MemoryWriter
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	TotalBytes     int
	UsedBytes      int
	AvailableBytes int
	BufferCount    int
}

// Manager implements the sample-buffer lifecycle: pooled allocation with
// guard samples, per-bufnum exclusivity, and pending-replacement rollback.
// It is grounded in the same "fixed backing region, explicit accounting"
// shape as the teacher's Memory backend, generalized from whole-device
// byte ranges to named, replaceable buffer slots.
type Manager struct {
	cfg     Config
	pool    *Pool
	locks   *bufnumLocks
	pending *pendingTable

	mu      sync.Mutex
	records map[uint32]*Record

	destroyed atomic.Bool
}

// New constructs a Manager. GuardBefore/GuardAfter and the three timeouts
// default to the standard constants when left zero.
func New(cfg Config) *Manager {
	if cfg.BlobTimeout == 0 {
		cfg.BlobTimeout = 30 * time.Second
	}
	if cfg.FileTimeout == 0 {
		cfg.FileTimeout = 60 * time.Second
	}
	if cfg.EmptyTimeout == 0 {
		cfg.EmptyTimeout = 5 * time.Second
	}
	if cfg.GuardBefore == 0 && cfg.GuardAfter == 0 {
		cfg.GuardBefore, cfg.GuardAfter = 3, 1
	}

	return &Manager{
		cfg:     cfg,
		pool:    NewPool(cfg.PoolSize),
		locks:   newBufnumLocks(),
		pending: newPendingTable(durations{blob: cfg.BlobTimeout, file: cfg.FileTimeout, empty: cfg.EmptyTimeout}),
		records: make(map[uint32]*Record),
	}
}

// PrepareFromPath loads raw bytes via the configured PathLoader, decodes
// them, and allocates a guarded slot for bufnum.
func (m *Manager) PrepareFromPath(ctx context.Context, bufnum uint32, path string) (*Record, error) {
	raw, err := m.cfg.Loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("buffer: load %q: %w", path, err)
	}
	return m.prepareDecoded(ctx, bufnum, path, raw, KindFile)
}

// PrepareFromBlob decodes an in-memory byte payload and allocates a
// guarded slot for bufnum.
func (m *Manager) PrepareFromBlob(ctx context.Context, bufnum uint32, raw []byte) (*Record, error) {
	return m.prepareDecoded(ctx, bufnum, "blob", raw, KindBlob)
}

func (m *Manager) prepareDecoded(ctx context.Context, bufnum uint32, source string, raw []byte, kind Kind) (*Record, error) {
	info, err := m.cfg.Decoder.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("buffer: decode %s: %w", source, err)
	}
	return m.prepare(ctx, bufnum, source, info.Hash, info.NumFrames, info.NumChannels, info.SampleRate, kind, info.Samples)
}

// PrepareEmpty allocates a guarded, zeroed slot with no decode step.
func (m *Manager) PrepareEmpty(ctx context.Context, bufnum uint32, numFrames, numChannels, sampleRate int) (*Record, error) {
	return m.prepare(ctx, bufnum, "", "", numFrames, numChannels, sampleRate, KindEmpty, nil)
}

// SampleInfo decodes source without allocating anything: no lock, no pool
// use, no pending op.
func (m *Manager) SampleInfo(raw []byte) (SampleInfo, error) {
	return m.cfg.Decoder.Decode(raw)
}

func (m *Manager) prepare(ctx context.Context, bufnum uint32, source, hash string, numFrames, numChannels, sampleRate int, kind Kind, samples []float32) (*Record, error) {
	if m.destroyed.Load() {
		return nil, ErrManagerDestroyed
	}

	release, err := m.locks.Acquire(ctx, bufnum)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.checkSlotBudget(bufnum); err != nil {
		return nil, err
	}

	size := guardedByteSize(numFrames, numChannels, m.cfg.GuardBefore, m.cfg.GuardAfter)
	ptr, err := m.pool.Alloc(size)
	if err != nil {
		return nil, err
	}

	if m.cfg.Memory != nil {
		encoded := encodeInterleaved(samples, numFrames, numChannels, m.cfg.GuardBefore, m.cfg.GuardAfter)
		m.cfg.Memory.WriteAt(ptr, encoded)
		scratch.PutBuffer(encoded)
	}

	rec := &Record{
		Bufnum: bufnum, Ptr: ptr, SizeBytes: size,
		NumFrames: numFrames, NumChannels: numChannels, SampleRate: sampleRate,
		Source: source, Hash: hash,
	}

	m.mu.Lock()
	if existing, ok := m.records[bufnum]; ok {
		rec.Previous = &PreviousAllocation{Ptr: existing.Ptr, SizeBytes: existing.SizeBytes}
	}
	m.mu.Unlock()

	uuid, handle := m.pending.register(bufnum, kind, func(uuid string) {
		m.settleFailure(rec, uuid)
	})
	rec.PendingToken = uuid

	m.mu.Lock()
	m.records[bufnum] = rec
	m.mu.Unlock()

	if err := m.cfg.Notifier.RequestAllocation(uuid, bufnum, ptr, size); err != nil {
		m.pool.Free(ptr, size)
		m.mu.Lock()
		delete(m.records, bufnum)
		m.mu.Unlock()
		m.pending.reject(uuid, err)
		return nil, err
	}

	select {
	case <-handle.Done():
	case <-ctx.Done():
		if m.pending.reject(uuid, ctx.Err()) {
			m.settleFailure(rec, uuid)
		}
		return nil, ctx.Err()
	}

	if err := handle.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) checkSlotBudget(bufnum uint32) error {
	if m.cfg.MaxBuffers <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[bufnum]; exists {
		return nil
	}
	if len(m.records) >= m.cfg.MaxBuffers {
		return ErrTooManyBuffers
	}
	return nil
}

// settleFailure runs the rollback half of pending-replacement: free the
// just-allocated pointer and restore whatever allocation preceded it.
func (m *Manager) settleFailure(rec *Record, uuid string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[rec.Bufnum]
	if !ok || current.PendingToken != uuid {
		return
	}

	m.pool.Free(current.Ptr, current.SizeBytes)

	if current.Previous != nil {
		m.records[rec.Bufnum] = &Record{
			Bufnum: rec.Bufnum, Ptr: current.Previous.Ptr, SizeBytes: current.Previous.SizeBytes,
		}
	} else {
		delete(m.records, rec.Bufnum)
	}
}

// HandleBufferAllocated processes the engine's confirmation that bufnum's
// memory was materialized successfully. It frees the displaced previous
// allocation, if any, and resolves the pending op.
func (m *Manager) HandleBufferAllocated(uuid string, bufnum uint32) {
	resolvedBufnum, ok := m.pending.resolve(uuid)
	if !ok || resolvedBufnum != bufnum {
		return
	}

	m.mu.Lock()
	rec, ok := m.records[bufnum]
	m.mu.Unlock()
	if !ok {
		return
	}

	if rec.Previous != nil {
		m.pool.Free(rec.Previous.Ptr, rec.Previous.SizeBytes)
		rec.Previous = nil
	}
}

// HandleBufferFreed processes an unsolicited free notification from the
// engine (the buffer was freed via b_free rather than replaced).
func (m *Manager) HandleBufferFreed(bufnum uint32, ptr int) {
	m.mu.Lock()
	rec, ok := m.records[bufnum]
	if ok && rec.Ptr == ptr {
		delete(m.records, bufnum)
	}
	m.mu.Unlock()

	if ok && rec.Ptr == ptr {
		m.pool.Free(rec.Ptr, rec.SizeBytes)
	}
}

// GetAllocatedBuffers returns a snapshot of every currently-recorded slot.
func (m *Manager) GetAllocatedBuffers() map[uint32]Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint32]Record, len(m.records))
	for k, v := range m.records {
		out[k] = *v
	}
	return out
}

// GetStats reports pool occupancy.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	count := len(m.records)
	m.mu.Unlock()
	return Stats{
		TotalBytes:     m.pool.Total(),
		UsedBytes:      m.pool.Used(),
		AvailableBytes: m.pool.Available(),
		BufferCount:    count,
	}
}

// Destroy rejects every outstanding pending op with ErrDestroyed and marks
// the manager unusable; subsequent prepare calls return ErrManagerDestroyed.
func (m *Manager) Destroy() {
	if !m.destroyed.CompareAndSwap(false, true) {
		return
	}
	m.pending.rejectAll(ErrDestroyed)
}
