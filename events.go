package supersonic

import (
	"sync"

	"github.com/samaaron/supersonic-go/internal/logging"
)

// EventName identifies one of the supervisor's typed event topics.
type EventName string

const (
	EventMessage                 EventName = "message"
	EventDebug                   EventName = "debug"
	EventError                   EventName = "error"
	EventReady                   EventName = "ready"
	EventReload                  EventName = "reload"
	EventResumed                 EventName = "resumed"
	EventAudioContextStateChange EventName = "audiocontext:statechange"
)

// Handler receives one event's payload. A handler that panics is isolated:
// Emit recovers it, logs it, and continues with the remaining handlers.
type Handler func(payload any)

// Emitter is the supervisor's subscriber registry. Subscribing and
// emitting are both safe for concurrent use, since events can originate
// from any of the supervisor's worker goroutines.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventName][]*subscription
	nextID   uint64
	logger   *logging.Logger
}

type subscription struct {
	id uint64
	fn Handler
}

// NewEmitter creates an Emitter that logs recovered handler panics through
// logger (or the package default logger if nil).
func NewEmitter(logger *logging.Logger) *Emitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Emitter{handlers: make(map[EventName][]*subscription), logger: logger}
}

// On registers fn for name and returns a function that removes it.
func (e *Emitter) On(name EventName, fn Handler) (unsubscribe func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	sub := &subscription{id: id, fn: fn}
	e.handlers[name] = append(e.handlers[name], sub)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		subs := e.handlers[name]
		for i, s := range subs {
			if s.id == id {
				e.handlers[name] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Emit calls every handler registered for name with payload, in
// registration order. Each call is isolated: a panic is recovered, logged,
// and does not prevent later handlers (for this or any other topic) from
// running.
func (e *Emitter) Emit(name EventName, payload any) {
	e.mu.RLock()
	subs := make([]*subscription, len(e.handlers[name]))
	copy(subs, e.handlers[name])
	e.mu.RUnlock()

	for _, s := range subs {
		e.dispatchOne(name, s, payload)
	}
}

func (e *Emitter) dispatchOne(name EventName, s *subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("event handler for %q panicked: %v", name, r)
		}
	}()
	s.fn(payload)
}

// RemoveAll clears every subscription across every topic, used on
// shutdown.
func (e *Emitter) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[EventName][]*subscription)
}
