package supersonic

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/gopkg/concurrency/gopool"

	"github.com/samaaron/supersonic-go/internal/buffer"
	"github.com/samaaron/supersonic-go/internal/channel"
	"github.com/samaaron/supersonic-go/internal/engine"
	"github.com/samaaron/supersonic-go/internal/logging"
	"github.com/samaaron/supersonic-go/internal/mirror"
	"github.com/samaaron/supersonic-go/internal/ntptime"
	"github.com/samaaron/supersonic-go/internal/osc"
	"github.com/samaaron/supersonic-go/internal/prescheduler"
	"github.com/samaaron/supersonic-go/internal/ring"
	"github.com/samaaron/supersonic-go/internal/shm"
	"github.com/samaaron/supersonic-go/internal/sidechannel"
	"github.com/samaaron/supersonic-go/internal/synthdef"
	"github.com/samaaron/supersonic-go/internal/transport"
)

// State is the Supervisor's lifecycle state, mirroring the teacher's
// DeviceState (created/running/stopped) with the two extra states this
// domain needs: Suspended (the audio host paused) and Closed.
type State string

const (
	StateCreated   State = "created"
	StateReady     State = "ready"
	StateSuspended State = "suspended"
	StateClosed    State = "closed"
)

// Options carries the Supervisor's external collaborators: the things
// spec.md explicitly puts out of scope (the engine itself, audio decode,
// asset fetch) and that a real deployment wires to a WASM engine, a
// browser decodeAudioData call, and a fetch-based loader respectively.
type Options struct {
	Engine  engine.Engine
	Decoder buffer.Decoder
	Loader  buffer.PathLoader

	// NowAudioTime supplies the monotonic clock the NTP anchor is pinned
	// against (the simulated AudioContext.currentTime). Defaults to a
	// process-monotonic seconds counter.
	NowAudioTime func() float64

	Logger               *logging.Logger
	SyncTimeout          time.Duration
	ResumeSampleInterval time.Duration
	ReplyPollInterval    time.Duration
}

func (o *Options) setDefaults() {
	if o.NowAudioTime == nil {
		start := time.Now()
		o.NowAudioTime = func() float64 { return time.Since(start).Seconds() }
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = 5 * time.Second
	}
	if o.ResumeSampleInterval <= 0 {
		o.ResumeSampleInterval = 5 * time.Millisecond
	}
	if o.ReplyPollInterval <= 0 {
		o.ReplyPollInterval = time.Millisecond
	}
}

type synthdefEntry struct {
	name      string
	oscPacket []byte
}

// Supervisor ties together every dispatch-plane component exactly as
// spec.md §4.10 describes: it owns the shared region (or port pair), the
// rings, the NTP anchor, the prescheduler, the transport façade, the
// buffer manager, and the per-source channels, and it drives the
// init/suspend/resume/reload/shutdown lifecycle across all of them. It is
// the Go-native equivalent of the teacher's Device (backend.go): a single
// struct owning every collaborator, with no global mutable state, so that
// more than one Supervisor can run in the same process.
type Supervisor struct {
	cfg  Config
	opts Options

	emitter *Emitter
	metrics *Metrics

	region *shm.Region // nil in PM mode
	layout shm.Layout

	inRing, outRing, debugRing *ring.Ring

	anchor      *ntptime.Anchor
	driftCancel context.CancelFunc

	scheduler   *prescheduler.Scheduler
	schedCancel context.CancelFunc

	facade       transport.Facade
	bypassWriter channel.Writer

	workletPort *transport.Port // PM mode only

	bufferMgr *buffer.Manager

	mu           sync.Mutex
	channels     map[uint32]*channel.Channel
	nextSourceID uint32
	synthdefs    map[string]synthdefEntry

	syncMu      sync.Mutex
	syncWaiters map[int32]chan struct{}

	mirrorMu   sync.RWMutex
	mirrorTree mirror.Tree

	runCtx    context.Context
	runCancel context.CancelFunc

	state atomic.Int32 // State, as an ordinal into stateNames
}

var stateNames = []State{StateCreated, StateReady, StateSuspended, StateClosed}

func stateOrdinal(s State) int32 {
	for i, n := range stateNames {
		if n == s {
			return int32(i)
		}
	}
	return 0
}

// NewSupervisor builds and initializes a Supervisor: it sequences exactly
// the steps spec.md §4.5 describes for the transport façade, generalized
// to the whole system — allocate shared memory (or a port pair), bring up
// NTP timing, start the prescheduler and poller workers, and publish
// `ready`. A failure at any step is a hard init failure, matching the
// propagation policy in spec.md §7.
func NewSupervisor(cfg Config, opts Options) (*Supervisor, error) {
	if opts.Engine == nil {
		return nil, NewError("NewSupervisor", CodeCapabilityMissing, "no engine configured")
	}
	opts.setDefaults()

	s := &Supervisor{
		cfg:          cfg,
		opts:         opts,
		emitter:      NewEmitter(opts.Logger),
		metrics:      NewMetrics(),
		channels:     make(map[uint32]*channel.Channel),
		nextSourceID: 1,
		synthdefs:    make(map[string]synthdefEntry),
		syncWaiters:  make(map[int32]chan struct{}),
	}
	s.setState(StateCreated)

	if err := s.bringUp(); err != nil {
		return nil, err
	}

	s.setState(StateReady)
	s.emitter.Emit(EventReady, nil)
	return s, nil
}

func (s *Supervisor) bringUp() error {
	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	if s.cfg.Mode == ModeSharedMemory {
		if err := s.bringUpSharedMemory(); err != nil {
			return err
		}
	} else {
		if err := s.bringUpMessagePort(); err != nil {
			return err
		}
	}

	s.anchor = ntptime.NewAnchor(s.opts.NowAudioTime)
	s.resyncNtp()

	driftCtx, driftCancel := context.WithCancel(s.runCtx)
	s.driftCancel = driftCancel
	drift := ntptime.NewDriftMonitor(s.anchor, 0.05, nil)
	go drift.Run(driftCtx)

	schedCtx, schedCancel := context.WithCancel(s.runCtx)
	s.schedCancel = schedCancel
	s.scheduler = prescheduler.New(prescheduler.Config{
		Capacity:       s.cfg.PreschedulerCapacity,
		Lookahead:      s.cfg.BypassLookahead,
		MaxRetries:     s.cfg.MaxRetries,
		RetryBaseDelay: s.cfg.RetryBaseDelay,
		MaxSpins:       s.cfg.MaxSpins,
		Writer:         s.bypassWriter,
		Clock:          s.anchor,
	})
	go s.scheduler.Run(schedCtx)

	if err := s.facade.Start(s.runCtx); err != nil {
		return WrapError("NewSupervisor", CodeCapabilityMissing, err)
	}

	var memory buffer.MemoryWriter
	if s.region != nil {
		memory = buffer.SliceMemory(s.region.BufferPoolBytes())
	} else {
		memory = buffer.SliceMemory(make([]byte, s.cfg.BufferPoolSize))
	}

	s.bufferMgr = buffer.New(buffer.Config{
		PoolSize:   s.cfg.BufferPoolSize,
		MaxBuffers: s.cfg.MaxBuffers,
		Notifier:   s,
		Decoder:    s.opts.Decoder,
		Loader:     s.opts.Loader,
		Memory:     memory,
	})

	main, err := s.newChannelLocked(0, true)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.channels[0] = main
	s.mu.Unlock()

	return nil
}

func (s *Supervisor) bringUpSharedMemory() error {
	layout, err := shm.NewLayout(s.cfg.EngineHeapSize, s.cfg.BufferPoolSize)
	if err != nil {
		return WrapError("NewSupervisor", CodeCapabilityMissing, err)
	}
	region, err := shm.NewRegion(layout)
	if err != nil {
		return WrapError("NewSupervisor", CodeCapabilityMissing, err)
	}
	s.region = region
	s.layout = layout

	inRing, err := ring.New(region.InRingBytes())
	if err != nil {
		return WrapError("NewSupervisor", CodeCapabilityMissing, err)
	}
	outRing, err := ring.New(region.OutRingBytes())
	if err != nil {
		return WrapError("NewSupervisor", CodeCapabilityMissing, err)
	}
	debugRing, err := ring.New(region.DebugRingBytes())
	if err != nil {
		return WrapError("NewSupervisor", CodeCapabilityMissing, err)
	}
	s.inRing, s.outRing, s.debugRing = inRing, outRing, debugRing
	s.bypassWriter = inRing

	sm := transport.NewSharedMemory(outRing, debugRing, s.opts.ReplyPollInterval, s.onEngineOut, s.onEngineDebug)
	s.facade = sm

	go s.engineDrainLoop(s.runCtx)

	if reg, ok := s.opts.Engine.(interface {
		OnReply(func(sourceID uint32, payload []byte))
	}); ok {
		reg.OnReply(func(sourceID uint32, payload []byte) {
			if err := s.outRing.WriteSP(sourceID, payload); err != nil {
				s.metrics.ObserveDrop("out", 1)
			}
		})
	}

	return nil
}

func (s *Supervisor) bringUpMessagePort() error {
	supervisorPort, workletPort := transport.NewPortPair(256)
	s.workletPort = workletPort
	s.bypassWriter = transport.NewPortWriter(supervisorPort)
	s.facade = transport.NewMessagePort(supervisorPort, s.onPMBatch)

	go s.workletLoop(s.runCtx, workletPort)

	if reg, ok := s.opts.Engine.(interface {
		OnReply(func(sourceID uint32, payload []byte))
	}); ok {
		reg.OnReply(func(sourceID uint32, payload []byte) {
			workletPort.Post(transport.EncodeBatch([]transport.Entry{{SourceID: sourceID, Payload: payload}}))
		})
	}

	return nil
}

// engineDrainLoop stands in for the AudioWorklet's hard-real-time pull of
// the IN ring: in a real deployment the compiled scsynth binary drains
// this ring itself on the audio callback. Here the Engine interface is an
// in-process collaborator, so a poll loop hands it frames instead.
func (s *Supervisor) engineDrainLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ReplyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, f := range s.inRing.Read() {
				if f.Dropped > 0 {
					s.metrics.ObserveDrop("in", f.Dropped)
				}
				if err := s.opts.Engine.HandleFrame(ctx, f.SourceID, f.Payload); err != nil {
					s.emitter.Emit(EventError, WrapError("engine.HandleFrame", CodeEngineError, err))
				}
			}
		}
	}
}

func (s *Supervisor) workletLoop(ctx context.Context, port *transport.Port) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-port.Recv():
			if !ok {
				return
			}
			entries, err := transport.DecodeBatch(msg)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if err := s.opts.Engine.HandleFrame(ctx, e.SourceID, e.Payload); err != nil {
					s.emitter.Emit(EventError, WrapError("engine.HandleFrame", CodeEngineError, err))
				}
			}
		}
	}
}

func (s *Supervisor) resyncNtp() {
	s.anchor.Resync(ntptime.SystemNtpNow())
	if s.region != nil {
		if ts, ok := s.anchor.NowNtp(); ok {
			buf := s.region.NtpBytes()
			binary.BigEndian.PutUint32(buf[0:4], ts.Seconds)
			binary.BigEndian.PutUint32(buf[4:8], ts.Fraction)
		}
	}
}

func (s *Supervisor) setState(st State) { s.state.Store(stateOrdinal(st)) }

// State reports the Supervisor's current lifecycle state.
func (s *Supervisor) State() State { return stateNames[s.state.Load()] }

// On subscribes fn to the named event topic; see events.go for the topic
// list. Returns an unsubscribe function.
func (s *Supervisor) On(name EventName, fn Handler) func() { return s.emitter.On(name, fn) }

// Metrics returns the Supervisor's atomic counter set.
func (s *Supervisor) Metrics() *Metrics { return s.metrics }

// Snapshot returns the combined metrics + prescheduler + per-channel
// snapshot.
func (s *Supervisor) Snapshot() SupervisorSnapshot {
	preschedStats := s.scheduler.Snapshot()

	metricsSnap := s.metrics.Snapshot()
	metricsSnap.MinHeadroomMs = preschedStats.MinHeadroomMs

	s.mu.Lock()
	channels := make(map[uint32]channel.CountersSnapshot, len(s.channels))
	for id, ch := range s.channels {
		channels[id] = ch.Snapshot()
	}
	s.mu.Unlock()

	return SupervisorSnapshot{
		Metrics:      metricsSnap,
		Prescheduler: preschedStats,
		Channels:     channels,
		State:        s.State(),
	}
}

// SupervisorSnapshot is a point-in-time view across every counter surface
// the dispatch plane exposes: the aggregate Metrics/Prescheduler counters,
// plus a per-channel breakdown (C3's own Counters, keyed by source id).
type SupervisorSnapshot struct {
	Metrics      MetricsSnapshot
	Prescheduler prescheduler.Stats
	Channels     map[uint32]channel.CountersSnapshot
	State        State
}

// CreateChannel manufactures a new per-source Channel, the Go-native
// analogue of the façade's createOscChannel: a fresh sourceId, wired to
// the shared bypass writer and the prescheduler. If the engine implements
// engine.SourceRegistrar, CreateChannel blocks until it acknowledges the
// new sourceId, resolving the registration-ordering open question in
// spec.md §9 by blocking rather than accepting a silent drop window.
func (s *Supervisor) CreateChannel(spin bool) (*channel.Channel, error) {
	s.mu.Lock()
	id := s.nextSourceID
	s.nextSourceID++
	s.mu.Unlock()

	ch, err := s.newChannelLocked(id, spin)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.channels[id] = ch
	s.mu.Unlock()
	return ch, nil
}

func (s *Supervisor) newChannelLocked(id uint32, spin bool) (*channel.Channel, error) {
	if reg, ok := s.opts.Engine.(engine.SourceRegistrar); ok {
		if err := reg.RegisterSource(id); err != nil {
			return nil, NewSourceError("CreateChannel", id, CodeCapabilityMissing, err.Error())
		}
	}

	maxSpins := 0
	if spin {
		maxSpins = s.cfg.MaxSpins
	}

	ch := channel.New(channel.Config{
		SourceID:  id,
		Clock:     s.anchor,
		Lookahead: s.cfg.BypassLookahead,
		Writer:    s.bypassWriter,
		Scheduler: s.scheduler,
		MaxSpins:  maxSpins,
	})

	if sm, ok := s.facade.(*transport.SharedMemory); ok {
		sm.Register(id, ch)
	}
	return ch, nil
}

// Send forbids denylisted addresses (spec.md §6) and otherwise forwards
// raw to sourceID's channel, which classifies and routes it.
func (s *Supervisor) Send(ctx context.Context, sourceID uint32, raw []byte, sessionID uint32, runTag string) error {
	if addr, ok := osc.Address(raw); ok && osc.IsDenylisted(addr) {
		return NewSourceError("Send", sourceID, CodeProtocolDenied, fmt.Sprintf("address %q is denylisted in this environment", addr))
	}

	s.mu.Lock()
	ch, ok := s.channels[sourceID]
	s.mu.Unlock()
	if !ok {
		return NewSourceError("Send", sourceID, CodeTransportFatal, "unknown source id")
	}

	if err := ch.SendWithOptions(ctx, raw, sessionID, runTag); err != nil {
		return WrapError("Send", CodeTransportTransient, err)
	}
	return nil
}

// SendImmediate is Send with no session/tag.
func (s *Supervisor) SendImmediate(ctx context.Context, sourceID uint32, raw []byte) error {
	return s.Send(ctx, sourceID, raw, 0, "")
}

// CancelTag, CancelSession, CancelSessionTag, and CancelAll delegate to
// the prescheduler; see internal/prescheduler for semantics.
func (s *Supervisor) CancelTag(tag string) int                      { return s.scheduler.CancelTag(tag) }
func (s *Supervisor) CancelSession(session uint32) int               { return s.scheduler.CancelSession(session) }
func (s *Supervisor) CancelSessionTag(session uint32, tag string) int { return s.scheduler.CancelSessionTag(session, tag) }
func (s *Supervisor) CancelAll() int                                  { return s.scheduler.CancelAll() }

// Sync sends "/sync syncId" on the main channel and blocks until a
// matching "/synced syncId" reply arrives or SyncTimeout elapses.
func (s *Supervisor) Sync(ctx context.Context, syncID int32) error {
	waiter := make(chan struct{})
	s.syncMu.Lock()
	s.syncWaiters[syncID] = waiter
	s.syncMu.Unlock()

	defer func() {
		s.syncMu.Lock()
		delete(s.syncWaiters, syncID)
		s.syncMu.Unlock()
	}()

	if err := s.SendImmediate(ctx, 0, sidechannel.EncodeSync(syncID)); err != nil {
		return WrapError("Sync", CodeTransportTransient, err)
	}

	timer := time.NewTimer(s.opts.SyncTimeout)
	defer timer.Stop()

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return WrapError("Sync", CodeHostLifecycle, ctx.Err())
	case <-timer.C:
		return NewError("Sync", CodeHostLifecycle, "timed out waiting for /synced")
	}
}

// Resume resumes the audio host. If the Supervisor was not suspended this
// is a no-op that still resyncs NTP, matching the idempotence law in
// spec.md §8. Otherwise it samples the engine's process counter before
// and after ResumeSampleInterval, then emits `resumed` whether or not the
// counter advanced; the comparison does not hold back the event.
func (s *Supervisor) Resume(ctx context.Context) error {
	wasSuspended := s.State() == StateSuspended
	s.resyncNtp()

	if !wasSuspended {
		s.emitter.Emit(EventResumed, nil)
		return nil
	}

	var before uint64
	if pc, ok := s.opts.Engine.(engine.ProcessCounter); ok {
		before = pc.ProcessCount()
	}
	select {
	case <-time.After(s.opts.ResumeSampleInterval):
	case <-ctx.Done():
		return WrapError("Resume", CodeHostLifecycle, ctx.Err())
	}
	if pc, ok := s.opts.Engine.(engine.ProcessCounter); ok {
		_ = pc.ProcessCount() > before // observed, not enforced: a quiet engine isn't necessarily broken
	}

	s.setState(StateReady)
	s.emitter.Emit(EventResumed, nil)
	s.emitter.Emit(EventAudioContextStateChange, "running")
	return nil
}

// Suspend marks the audio host suspended. No messages are lost: bypass
// writes keep landing in the ring and back-pressure naturally once it
// fills, and the prescheduler keeps queueing far-future bundles.
func (s *Supervisor) Suspend() {
	s.setState(StateSuspended)
	s.emitter.Emit(EventAudioContextStateChange, "suspended")
}

// LoadSynthDef records defBytes under the name synthdef.Name extracts
// from it, remembers oscPacket (the caller-encoded "/d_recv ..." message,
// since OSC wire encoding is out of scope here) for re-send on reload,
// and forwards it to the engine.
func (s *Supervisor) LoadSynthDef(ctx context.Context, defBytes, oscPacket []byte) (string, error) {
	name, err := synthdef.Name(defBytes)
	if err != nil {
		return "", WrapError("LoadSynthDef", CodeProtocolDenied, err)
	}
	if err := s.SendImmediate(ctx, 0, oscPacket); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.synthdefs[name] = synthdefEntry{name: name, oscPacket: oscPacket}
	s.mu.Unlock()
	return name, nil
}

// NodeTree parses the most recently observed node-tree mirror snapshot.
// Only available in shared-memory mode: the message-port variant has no
// dedicated mirror channel.
func (s *Supervisor) NodeTree() (mirror.Tree, error) {
	if s.region == nil {
		return mirror.Tree{}, NewError("NodeTree", CodeCapabilityMissing, "node-tree mirror is unavailable in message-port mode")
	}
	return mirror.Parse(s.region.MirrorBytes()), nil
}

// BufferManager exposes the sample-buffer lifecycle manager directly for
// callers that need prepareFromPath/prepareFromBlob/prepareEmpty.
func (s *Supervisor) BufferManager() *buffer.Manager { return s.bufferMgr }

// RequestAllocation implements buffer.EngineNotifier: it encodes the
// allocate request as a side-channel OSC message and sends it on the main
// channel, the same path every other outbound frame takes.
func (s *Supervisor) RequestAllocation(uuid string, bufnum uint32, ptr int, sizeBytes int) error {
	packet := sidechannel.EncodeBufferAllocateRequest(uuid, bufnum, ptr, sizeBytes)
	return s.bypassWriter.WriteMP(0, packet, s.cfg.MaxSpins)
}

// onEngineOut recognizes the fixed-shape side-channel replies (buffer
// lifecycle, /synced) and otherwise forwards the frame to subscribers as
// a passthrough `message` event, surfacing `/fail` specially as `error`.
func (s *Supervisor) onEngineOut(sourceID uint32, payload []byte, dropped uint32) {
	if dropped > 0 {
		s.metrics.ObserveDrop("out", dropped)
	}

	if bf, ok := sidechannel.ParseBufferFreed(payload); ok {
		s.bufferMgr.HandleBufferFreed(bf.Bufnum, int(bf.Ptr))
		return
	}
	if ba, ok := sidechannel.ParseBufferAllocated(payload); ok {
		s.bufferMgr.HandleBufferAllocated(ba.UUID, ba.Bufnum)
		return
	}
	if sy, ok := sidechannel.ParseSynced(payload); ok {
		s.syncMu.Lock()
		waiter, ok := s.syncWaiters[sy.SyncID]
		s.syncMu.Unlock()
		if ok {
			close(waiter)
		}
		return
	}

	if addr, ok := osc.Address(payload); ok && addr == "/fail" {
		s.emitter.Emit(EventError, NewSourceError("engine", sourceID, CodeEngineError, "/fail"))
		return
	}

	s.emitter.Emit(EventMessage, payload)
}

func (s *Supervisor) onEngineDebug(sourceID uint32, payload []byte, dropped uint32) {
	if dropped > 0 {
		s.metrics.ObserveDrop("debug", dropped)
	}
	s.emitter.Emit(EventDebug, string(payload))
}

// onPMBatch is the message-port variant's combined reply handler: PM mode
// carries OUT- and DEBUG-class traffic over the same port, so every entry
// is routed through the same side-channel recognition onEngineOut uses.
func (s *Supervisor) onPMBatch(entries []transport.Entry) {
	for _, e := range entries {
		s.onEngineOut(e.SourceID, e.Payload, 0)
	}
}

// reloadSnapshot captures the state reload needs to restore after tearing
// the transport down and rebuilding it.
type reloadSnapshot struct {
	synthdefs []synthdefEntry
	buffers   map[uint32]buffer.Record
}

// Reload captures the current synthdef and buffer records, tears down and
// rebuilds the transport layer, then re-sends every synthdef and
// re-materializes every buffer: by direct pointer allocation in
// shared-memory mode (the pool bytes persist across reload), or by
// reloading from path in message-port mode (nothing persists outside the
// process, so blob-sourced buffers cannot be recovered and are reported
// via the `error` event).
func (s *Supervisor) Reload(ctx context.Context) error {
	s.mu.Lock()
	snap := reloadSnapshot{buffers: s.bufferMgr.GetAllocatedBuffers()}
	for _, sd := range s.synthdefs {
		snap.synthdefs = append(snap.synthdefs, sd)
	}
	s.mu.Unlock()

	s.teardown()

	s.mu.Lock()
	s.channels = make(map[uint32]*channel.Channel)
	s.nextSourceID = 1
	s.mu.Unlock()

	if err := s.bringUp(); err != nil {
		return WrapError("Reload", CodeCapabilityMissing, err)
	}

	for _, sd := range snap.synthdefs {
		if err := s.SendImmediate(ctx, 0, sd.oscPacket); err != nil {
			s.emitter.Emit(EventError, WrapError("Reload", CodeEngineError, err))
		}
	}

	if s.cfg.Mode == ModeSharedMemory {
		for bufnum, rec := range snap.buffers {
			packet := sidechannel.EncodeBufferAllocateRequest(rec.PendingToken, bufnum, rec.Ptr, rec.SizeBytes)
			if err := s.bypassWriter.WriteMP(0, packet, s.cfg.MaxSpins); err != nil {
				s.emitter.Emit(EventError, NewBufferError("Reload", bufnum, CodeBufferLifecycle, "failed to re-request allocation"))
			}
		}
	} else {
		for bufnum, rec := range snap.buffers {
			if rec.Source == "" || rec.Source == "blob" {
				s.emitter.Emit(EventError, NewBufferError("Reload", bufnum, CodeBufferLifecycle, "cannot re-materialize a blob/empty buffer in message-port mode"))
				continue
			}
			path, ch := rec.Source, bufnum
			gopool.CtxGo(ctx, func() {
				if _, err := s.bufferMgr.PrepareFromPath(ctx, ch, path); err != nil {
					s.emitter.Emit(EventError, NewBufferError("Reload", ch, CodeBufferLifecycle, err.Error()))
				}
			})
		}
	}

	s.setState(StateReady)
	s.emitter.Emit(EventReload, nil)
	return nil
}

// teardown stops every background worker and releases the region/ports
// without disturbing the buffer manager's own state (pool accounting and
// pending ops survive a reload; only the transport layer is rebuilt).
func (s *Supervisor) teardown() {
	s.scheduler.Purge()
	s.scheduler.Close()
	if s.schedCancel != nil {
		s.schedCancel()
	}
	if s.driftCancel != nil {
		s.driftCancel()
	}
	if s.facade != nil {
		s.facade.Stop()
	}
	if s.runCancel != nil {
		s.runCancel()
	}
	if s.workletPort != nil {
		s.workletPort.Close()
	}
	if s.region != nil {
		s.region.Close()
		s.region = nil
	}
}

// Shutdown cancels all scheduled work, disposes every channel, closes the
// transport and engine, frees the buffer pool, and clears every listener.
// Safe to call once.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.teardown()

	s.mu.Lock()
	for _, ch := range s.channels {
		ch.Close()
	}
	s.channels = nil
	s.mu.Unlock()

	s.bufferMgr.Destroy()

	if err := s.opts.Engine.Close(); err != nil {
		s.setState(StateClosed)
		s.emitter.RemoveAll()
		return WrapError("Shutdown", CodeHostLifecycle, err)
	}

	s.setState(StateClosed)
	s.emitter.RemoveAll()
	return nil
}
