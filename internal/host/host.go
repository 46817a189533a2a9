package host

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// defaultPublishTimeout bounds one fan-out to all sinks.
const defaultPublishTimeout = 5 * time.Second

// ErrEntityNotFound is returned when no entity is attached under an id.
var ErrEntityNotFound = errors.New("host: entity not found")

// Logger defines the logging interface used by the host package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink receives published tracker state.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// PublishState delivers a successfully read state.
	PublishState(ctx context.Context, st tracker.State) error

	// PublishUnavailable marks an entity whose state could not be read.
	PublishUnavailable(ctx context.Context, id string, cause error) error
}

// Options configures a Host.
type Options struct {
	// Sinks receive every published state, in order.
	Sinks []Sink

	// PublishTimeout bounds one fan-out.
	// Default: 5 seconds.
	PublishTimeout time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// Host keeps attached entities and publishes their state to sinks.
//
// Host implements tracker.Host.
//
// Thread Safety: All methods are safe for concurrent use.
type Host struct {
	sinks          []Sink
	publishTimeout time.Duration
	logger         Logger

	entities map[string]tracker.Entity
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a host with the given sinks.
func New(opts Options) *Host {
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	timeout := opts.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Host{
		sinks:          append([]Sink(nil), opts.Sinks...),
		publishTimeout: timeout,
		logger:         logger,
		entities:       make(map[string]tracker.Entity),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// AddEntity adopts an entity and runs its attach hook.
// A second entity with the same id replaces and detaches the first.
func (h *Host) AddEntity(e tracker.Entity) {
	id := e.UniqueID()

	h.mu.Lock()
	previous, replaced := h.entities[id]
	h.entities[id] = e
	h.mu.Unlock()

	if replaced && previous != e {
		h.logger.Warn("entity replaced", "device_id", id)
		previous.OnHostDetach()
	}

	h.logger.Info("entity attached", "device_id", id)
	e.OnHostAttach(h.ctx)
}

// RemoveEntity detaches and forgets an entity.
func (h *Host) RemoveEntity(id string) error {
	h.mu.Lock()
	e, ok := h.entities[id]
	delete(h.entities, id)
	h.mu.Unlock()

	if !ok {
		return ErrEntityNotFound
	}
	e.OnHostDetach()
	h.logger.Info("entity detached", "device_id", id)
	return nil
}

// Entity returns the entity attached under id.
func (h *Host) Entity(id string) (tracker.Entity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entities[id]
	return e, ok
}

// EntityCount returns the number of attached entities.
func (h *Host) EntityCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entities)
}

// State reads the current state of one entity.
func (h *Host) State(id string) (tracker.State, error) {
	e, ok := h.Entity(id)
	if !ok {
		return tracker.State{}, ErrEntityNotFound
	}
	return e.State()
}

// States reads every readable entity, ordered by id.
// Entities whose state cannot be read are skipped.
func (h *Host) States() []tracker.State {
	h.mu.RLock()
	entities := make([]tracker.Entity, 0, len(h.entities))
	for _, e := range h.entities {
		entities = append(entities, e)
	}
	h.mu.RUnlock()

	states := make([]tracker.State, 0, len(entities))
	for _, e := range entities {
		st, err := e.State()
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UniqueID < states[j].UniqueID })
	return states
}

// DeviceChanged reads the entity and publishes its state to every sink.
// Unknown ids are ignored.
func (h *Host) DeviceChanged(id string) {
	e, ok := h.Entity(id)
	if !ok {
		h.logger.Debug("change for unattached entity ignored", "device_id", id)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.publishTimeout)
	defer cancel()

	st, err := e.State()
	if err != nil {
		h.logger.Error("reading entity state failed", "device_id", id, "error", err)
		for _, s := range h.sinks {
			if pubErr := s.PublishUnavailable(ctx, id, err); pubErr != nil {
				h.logger.Warn("sink publish failed", "sink", s.Name(), "device_id", id, "error", pubErr)
			}
		}
		return
	}

	for _, s := range h.sinks {
		if pubErr := s.PublishState(ctx, st); pubErr != nil {
			h.logger.Warn("sink publish failed", "sink", s.Name(), "device_id", id, "error", pubErr)
		}
	}
}

// Close detaches every entity and cancels in-flight publishes.
func (h *Host) Close() {
	h.mu.Lock()
	entities := h.entities
	h.entities = make(map[string]tracker.Entity)
	h.mu.Unlock()

	for _, e := range entities {
		e.OnHostDetach()
	}
	h.cancel()
	h.logger.Info("host closed", "entities", len(entities))
}
