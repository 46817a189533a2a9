package audit

import (
	"context"
	"sync"
	"time"
)

// queueSize bounds pending entries. Entries beyond it are dropped.
const queueSize = 256

// writeTimeout bounds one insert.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder queues entries and writes them serially.
//
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	repo   Repository
	queue  chan *Entry
	logger Logger
	now    func() time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// NewRecorder creates a recorder writing to repo. Call Start before Record.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:   repo,
		queue:  make(chan *Entry, queueSize),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		done:   make(chan struct{}),
	}
}

// Start launches the writer goroutine. It stops when ctx is cancelled
// or Stop is called, after flushing queued entries.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.drain(ctx)
}

// Stop flushes the queue and waits for the writer to exit.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// Record queues an entry without blocking.
func (r *Recorder) Record(action, entityType, entityID, source string, details map[string]any) {
	if r == nil {
		return
	}
	e := &Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     source,
		Details:    details,
		CreatedAt:  r.now(),
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("audit queue full, dropping entry", "action", action, "entity_type", entityType)
	}
}

func (r *Recorder) drain(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-ctx.Done():
			r.flush()
			return
		case <-r.done:
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Create(ctx, e); err != nil {
		r.logger.Error("audit write failed", "action", e.Action, "entity_type", e.EntityType, "error", err)
	}
}

// Refresher triggers an out-of-band refresh.
type Refresher interface {
	RefreshOnce(ctx context.Context) error
}

// AuditedRefresher records every refresh it forwards.
type AuditedRefresher struct {
	next     Refresher
	recorder *Recorder
	source   string
}

// NewAuditedRefresher wraps next so each call is recorded under source.
func NewAuditedRefresher(next Refresher, recorder *Recorder, source string) *AuditedRefresher {
	return &AuditedRefresher{next: next, recorder: recorder, source: source}
}

// RefreshOnce forwards to the wrapped refresher and records the outcome.
func (a *AuditedRefresher) RefreshOnce(ctx context.Context) error {
	err := a.next.RefreshOnce(ctx)
	details := map[string]any{"success": err == nil}
	if err != nil {
		details["error"] = err.Error()
	}
	a.recorder.Record(ActionRefresh, EntityAccount, "", a.source, details)
	return err
}
