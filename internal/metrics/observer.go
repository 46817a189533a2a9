package metrics

import (
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// DeviceSource lists the currently tracked device IDs.
// Satisfied by *tracker.Registry.
type DeviceSource interface {
	IDs() []string
}

// RefreshWriter persists refresh outcomes.
// Satisfied by *influxdb.Client.
type RefreshWriter interface {
	WriteRefresh(result string, devices int, duration time.Duration)
}

// Observer updates Metrics from coordinator broadcasts.
// It implements tracker.Listener.
type Observer struct {
	m       *Metrics
	devices DeviceSource
	writer  RefreshWriter
}

// NewObserver creates an observer. devices and writer may be nil.
func NewObserver(m *Metrics, devices DeviceSource, writer RefreshWriter) *Observer {
	return &Observer{m: m, devices: devices, writer: writer}
}

// HandleSnapshot implements tracker.Listener.
func (o *Observer) HandleSnapshot(snap *tracker.Snapshot) {
	o.m.RefreshTotal.WithLabelValues(ResultSuccess).Inc()
	o.m.FetchDuration.WithLabelValues(ResultSuccess).Observe(snap.Duration.Seconds())
	o.m.SnapshotDevices.Set(float64(snap.Len()))
	o.m.LastSuccess.Set(float64(snap.FetchedAt.Unix()))
	o.m.LastCycle.Set(float64(snap.Cycle))

	if o.devices != nil {
		ids := o.devices.IDs()
		missing := 0
		for _, id := range ids {
			if _, ok := snap.Find(id); !ok {
				missing++
			}
		}
		o.m.TrackedDevices.Set(float64(len(ids)))
		o.m.MissingDevices.Set(float64(missing))
	}

	if o.writer != nil {
		o.writer.WriteRefresh(ResultSuccess, snap.Len(), snap.Duration)
	}
}

// HandleUpdateFailed implements tracker.Listener.
func (o *Observer) HandleUpdateFailed(failure *tracker.UpdateFailedError) {
	o.m.RefreshTotal.WithLabelValues(ResultFailure).Inc()
	o.m.FetchDuration.WithLabelValues(ResultFailure).Observe(failure.Duration.Seconds())
	o.m.LastCycle.Set(float64(failure.Cycle))

	if o.writer != nil {
		o.writer.WriteRefresh(ResultFailure, 0, failure.Duration)
	}
}
