package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Coordinator defaults.
const (
	// DefaultInterval is the time between scheduled refreshes.
	DefaultInterval = 60 * time.Second

	// DefaultFetchTimeout is the hard ceiling on a single fetch.
	DefaultFetchTimeout = 300 * time.Second

	// refreshKey is the singleflight key shared by every refresh.
	refreshKey = "refresh"
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Fetcher supplies device snapshots. Required.
	Fetcher Fetcher

	// Interval is the time between scheduled refreshes.
	// Default: 60 seconds.
	Interval time.Duration

	// FetchTimeout bounds one fetch. Exceeding it fails the cycle.
	// Default: 300 seconds.
	FetchTimeout time.Duration

	// AlwaysPublish treats every successful fetch as changed. When false,
	// only the first successful fetch after start-up is published.
	// DefaultCoordinatorOptions sets it to true.
	AlwaysPublish bool

	// Registry receives broadcasts. A new one is created if nil.
	Registry *Registry

	// Logger is optional structured logger.
	Logger Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// DefaultCoordinatorOptions returns options with the reference policy.
func DefaultCoordinatorOptions(fetcher Fetcher) CoordinatorOptions {
	return CoordinatorOptions{
		Fetcher:       fetcher,
		Interval:      DefaultInterval,
		FetchTimeout:  DefaultFetchTimeout,
		AlwaysPublish: true,
	}
}

// Status is a read-only view of the coordinator state.
type Status struct {
	LastUpdate        time.Time `json:"last_update"`
	LastUpdateSuccess bool      `json:"last_update_success"`
	LastError         string    `json:"last_error,omitempty"`
	Cycles            uint64    `json:"cycles"`
	FirstBoot         bool      `json:"first_boot"`
	TrackedDevices    int       `json:"tracked_devices"`
	SnapshotSize      int       `json:"snapshot_size"`
	IntervalSeconds   float64   `json:"interval_seconds"`
}

// Coordinator drives the single shared refresh of all tracked devices.
//
// The remote API is called once per interval regardless of how many devices
// are tracked. Refreshes never overlap: the ticker runs them one at a time and
// on-demand callers join the refresh already in flight.
//
// Thread Safety: All methods are safe for concurrent use.
type Coordinator struct {
	fetcher       Fetcher
	interval      time.Duration
	fetchTimeout  time.Duration
	alwaysPublish bool
	registry      *Registry
	now           func() time.Time

	// Refresh state
	snapshot          *Snapshot
	lastUpdate        time.Time
	lastUpdateSuccess bool
	lastErr           *UpdateFailedError
	firstBoot         bool
	stateMu           sync.RWMutex

	cycles atomic.Uint64
	flight singleflight.Group

	// Non-device listeners, in subscription order
	observers   []Listener
	observersMu sync.RWMutex

	// Shutdown coordination. Refreshes run on lifeCtx; a caller's ctx only
	// bounds its own wait.
	started    bool
	stopped    bool
	runMu      sync.Mutex
	cancel     context.CancelFunc
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	inflight   sync.WaitGroup
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
	loggerMu   sync.RWMutex
	logger     Logger
}

// NewCoordinator creates a coordinator. Call Start to begin polling.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())

	return &Coordinator{
		fetcher:       opts.Fetcher,
		interval:      interval,
		fetchTimeout:  fetchTimeout,
		alwaysPublish: opts.AlwaysPublish,
		registry:      registry,
		now:           now,
		firstBoot:     true,
		lifeCtx:       lifeCtx,
		lifeCancel:    lifeCancel,
		done:          make(chan struct{}),
		logger:        logger,
	}, nil
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Coordinator) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// Registry returns the device registry the coordinator broadcasts to.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Interval returns the refresh interval.
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// AddObserver subscribes a non-device listener to every refresh outcome.
// Observers are called after all registered devices, in the order added.
func (c *Coordinator) AddObserver(l Listener) {
	c.observersMu.Lock()
	c.observers = append(c.observers, l)
	c.observersMu.Unlock()
}

// Start begins periodic refreshing. The first refresh runs immediately.
//
// Parameters:
//   - ctx: Context for cancellation (polling stops when cancelled)
//
// Returns:
//   - error: ErrAlreadyStarted or ErrStopped
func (c *Coordinator) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.pollLoop(loopCtx)

	c.log().Info("tracker coordinator started", "interval", c.interval, "fetch_timeout", c.fetchTimeout)
	return nil
}

// Stop halts future ticks and cancels an in-flight fetch. A refresh cut
// short by Stop broadcasts nothing.
// Safe to call multiple times and before Start.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.runMu.Lock()
		c.stopped = true
		cancel := c.cancel
		c.runMu.Unlock()

		close(c.done)
		c.lifeCancel()
		if cancel != nil {
			cancel()
		}
		c.wg.Wait()
		c.inflight.Wait()
		c.log().Info("tracker coordinator stopped")
	})
}

// pollLoop runs the scheduled refreshes.
func (c *Coordinator) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	//nolint:errcheck // Failures are logged and broadcast inside refresh
	c.RefreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			//nolint:errcheck // Failures are logged and broadcast inside refresh
			c.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce runs one refresh cycle, or joins the one already running.
// The cycle itself is bound to the coordinator's lifetime, not to ctx:
// cancelling ctx only stops this caller from waiting.
//
// Returns:
//   - error: nil when the cycle succeeded, an *UpdateFailedError when it
//     failed, ctx.Err() when the caller gave up, or ErrStopped
func (c *Coordinator) RefreshOnce(ctx context.Context) error {
	ch := c.flight.DoChan(refreshKey, func() (any, error) {
		c.runMu.Lock()
		if c.stopped {
			c.runMu.Unlock()
			return nil, ErrStopped
		}
		c.inflight.Add(1)
		c.runMu.Unlock()
		defer c.inflight.Done()

		return nil, c.refresh(c.lifeCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refresh fetches, applies the publish policy and broadcasts the outcome.
func (c *Coordinator) refresh(ctx context.Context) error {
	cycle := c.cycles.Add(1)
	logger := c.log()

	start := c.now()
	records, err := c.fetch(ctx)
	took := c.now().Sub(start)
	if err == nil {
		err = validateRecords(records)
	}
	if err != nil && c.lifeCtx.Err() != nil {
		logger.Info("tracker refresh abandoned, coordinator stopping", "cycle", cycle)
		return ErrStopped
	}
	if err != nil {
		failure := &UpdateFailedError{Cycle: cycle, At: c.now(), Duration: took, Err: err}

		c.stateMu.Lock()
		c.lastUpdateSuccess = false
		c.lastErr = failure
		c.stateMu.Unlock()

		logger.Error("tracker refresh failed", "cycle", cycle, "error", err)
		c.broadcastFailure(failure)
		return failure
	}

	logger.Debug("tracker refresh fetched", "cycle", cycle, "devices", len(records))

	c.stateMu.Lock()
	// A success right after a failure is a change: devices were marked
	// unavailable and only a snapshot brings them back.
	recovered := c.lastErr != nil
	if !c.alwaysPublish && !c.firstBoot && !recovered {
		c.lastUpdateSuccess = true
		c.lastErr = nil
		c.stateMu.Unlock()
		logger.Debug("no new tracker data to publish", "cycle", cycle)
		return nil
	}

	now := c.now()
	snap := &Snapshot{
		Records:   append([]DeviceRecord(nil), records...),
		FetchedAt: now,
		Cycle:     cycle,
		Duration:  took,
	}
	previous := c.lastUpdate
	c.snapshot = snap
	c.lastUpdate = now
	c.lastUpdateSuccess = true
	c.lastErr = nil
	c.firstBoot = false
	c.stateMu.Unlock()

	logger.Debug("publishing tracker snapshot", "cycle", cycle, "devices", snap.Len(), "previous_update", previous, "recovered", recovered)
	c.broadcastSnapshot(snap)
	return nil
}

// fetch calls the fetcher under the hard ceiling.
// A fetcher that ignores ctx is abandoned once the ceiling elapses.
func (c *Coordinator) fetch(ctx context.Context) ([]DeviceRecord, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	type result struct {
		records []DeviceRecord
		err     error
	}
	resultCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- result{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		records, err := c.fetcher.Update(fetchCtx)
		resultCh <- result{records: records, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %v: %w", ErrFetchTimeout, c.fetchTimeout, res.err)
			}
			return nil, res.err
		}
		return res.records, nil
	case <-fetchCtx.Done():
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrFetchTimeout, c.fetchTimeout)
		}
		return nil, fetchCtx.Err()
	}
}

// broadcastSnapshot delivers a snapshot to devices (uuid order) then observers.
func (c *Coordinator) broadcastSnapshot(snap *Snapshot) {
	for _, d := range c.registry.Devices() {
		d.HandleSnapshot(snap)
	}
	for _, l := range c.listObservers() {
		l.HandleSnapshot(snap)
	}
}

// broadcastFailure delivers a failure signal to devices then observers.
func (c *Coordinator) broadcastFailure(failure *UpdateFailedError) {
	for _, d := range c.registry.Devices() {
		d.HandleUpdateFailed(failure)
	}
	for _, l := range c.listObservers() {
		l.HandleUpdateFailed(failure)
	}
}

func (c *Coordinator) listObservers() []Listener {
	c.observersMu.RLock()
	defer c.observersMu.RUnlock()
	out := make([]Listener, len(c.observers))
	copy(out, c.observers)
	return out
}

// Snapshot returns the last published snapshot (nil before the first one).
func (c *Coordinator) Snapshot() *Snapshot {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.snapshot
}

// LastUpdate returns the time of the last published snapshot.
func (c *Coordinator) LastUpdate() time.Time {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastUpdate
}

// LastUpdateSuccess reports whether the most recent cycle succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastUpdateSuccess
}

// Status returns a point-in-time view of the coordinator.
func (c *Coordinator) Status() Status {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	st := Status{
		LastUpdate:        c.lastUpdate,
		LastUpdateSuccess: c.lastUpdateSuccess,
		Cycles:            c.cycles.Load(),
		FirstBoot:         c.firstBoot,
		TrackedDevices:    c.registry.Len(),
		SnapshotSize:      c.snapshot.Len(),
		IntervalSeconds:   c.interval.Seconds(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}
