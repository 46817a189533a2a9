package one2track

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// BridgeID names this bridge in topics and health messages.
const BridgeID = "one2track"

// defaultHealthInterval is the heartbeat period when none is configured.
const defaultHealthInterval = 30 * time.Second

// HealthStatus is the "status" field of a heartbeat.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting" // no refresh finished yet
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded" // broker down or last refresh failed
	HealthStale    HealthStatus = "stale"    // no success for staleAfter intervals
	HealthStopping HealthStatus = "stopping"
)

// staleAfter is how many poll intervals without success make the bridge stale.
const staleAfter = 3

// HealthMessage is the retained heartbeat on graytrack/health/one2track.
type HealthMessage struct {
	Bridge         string       `json:"bridge"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         HealthStatus `json:"status"`
	Version        string       `json:"version,omitempty"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	DevicesManaged int          `json:"devices_managed"`
	Cycles         uint64       `json:"cycles"`
	LastUpdate     *time.Time   `json:"last_update,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	Reason         string       `json:"reason,omitempty"`
}

// HealthPublisher is satisfied by *mqtt.Client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatusSource is satisfied by *tracker.Coordinator.
type StatusSource interface {
	Status() tracker.Status
}

// HealthReporterConfig wires a HealthReporter. Interval defaults to
// defaultHealthInterval; Logger may be nil.
type HealthReporterConfig struct {
	Version   string
	Interval  time.Duration
	Publisher HealthPublisher
	Source    StatusSource
	Logger    Logger
}

// HealthReporter sends the bridge heartbeat on a ticker. As a
// tracker.Listener it also sends one out of turn whenever the status
// changes, so a failing portal shows up without waiting a full interval.
type HealthReporter struct {
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    StatusSource
	logger    Logger
	now       func() time.Time

	lastStatus   HealthStatus
	lastStatusMu sync.Mutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter returns a stopped reporter; call Start.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	var logger Logger = noopLogger{}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	return &HealthReporter{
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publish(h.message(HealthStopping, "service stopping"))
	})
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	h.lastStatusMu.Lock()
	h.lastStatus = status
	h.lastStatusMu.Unlock()
	return h.publish(h.message(status, reason))
}

// HandleSnapshot implements tracker.Listener.
func (h *HealthReporter) HandleSnapshot(*tracker.Snapshot) {
	h.publishOnChange()
}

// HandleUpdateFailed implements tracker.Listener.
func (h *HealthReporter) HandleUpdateFailed(*tracker.UpdateFailedError) {
	h.publishOnChange()
}

// publishOnChange publishes only when the derived status differs from the
// last one published. Runs on the refresh goroutine, so it must stay cheap.
func (h *HealthReporter) publishOnChange() {
	status, reason := h.determineStatus()

	h.lastStatusMu.Lock()
	changed := status != h.lastStatus
	h.lastStatus = status
	h.lastStatusMu.Unlock()

	if !changed {
		return
	}
	if err := h.publish(h.message(status, reason)); err != nil {
		h.logger.Warn("publishing health change failed", "status", status, "error", err)
	}
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source == nil {
		return HealthStarting, ""
	}

	st := h.source.Status()
	switch {
	case st.Cycles == 0:
		return HealthStarting, "no refresh yet"
	case !st.LastUpdateSuccess:
		return HealthDegraded, st.LastError
	case st.IntervalSeconds > 0 && h.now().Sub(st.LastUpdate).Seconds() > staleAfter*st.IntervalSeconds:
		return HealthStale, fmt.Sprintf("no successful refresh since %s", st.LastUpdate.UTC().Format(time.RFC3339))
	default:
		return HealthHealthy, ""
	}
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        BridgeID,
		Timestamp:     h.now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(h.now().Sub(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.source != nil {
		st := h.source.Status()
		msg.DevicesManaged = st.TrackedDevices
		msg.Cycles = st.Cycles
		msg.LastError = st.LastError
		if !st.LastUpdate.IsZero() {
			last := st.LastUpdate.UTC()
			msg.LastUpdate = &last
		}
	}
	return msg
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling health message: %w", err)
	}
	return h.publisher.Publish(mqtt.Topics{}.BridgeHealth(BridgeID), payload, 1, true)
}
