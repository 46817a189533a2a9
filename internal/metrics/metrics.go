package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "graytrack"

// Refresh results used as label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the service collectors.
type Metrics struct {
	// RefreshTotal counts refresh cycles by result.
	RefreshTotal *prometheus.CounterVec

	// FetchDuration observes how long each fetch took, by result.
	FetchDuration *prometheus.HistogramVec

	// SnapshotDevices is the record count of the latest snapshot.
	SnapshotDevices prometheus.Gauge

	// TrackedDevices is the number of devices subscribed to the coordinator.
	TrackedDevices prometheus.Gauge

	// MissingDevices counts tracked devices absent from the latest snapshot.
	MissingDevices prometheus.Gauge

	// LastSuccess is the unix time of the latest successful refresh.
	LastSuccess prometheus.Gauge

	// LastCycle is the cycle number of the latest refresh, either outcome.
	LastCycle prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A collector already registered by an earlier call is reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "refresh_total",
				Help:      "Total number of tracker refresh cycles",
			},
			[]string{"result"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time spent fetching the device list",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"result"},
		),
		SnapshotDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "snapshot_devices",
			Help:      "Number of devices in the latest snapshot",
		}),
		TrackedDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "tracked_devices",
			Help:      "Number of devices being tracked",
		}),
		MissingDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "missing_devices",
			Help:      "Tracked devices absent from the latest snapshot",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the latest successful refresh",
		}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_cycle",
			Help:      "Cycle number of the latest refresh",
		}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.RefreshTotal, err = register(reg, m.RefreshTotal)
	if err != nil {
		return nil, err
	}
	m.FetchDuration, err = register(reg, m.FetchDuration)
	if err != nil {
		return nil, err
	}
	for _, g := range []*prometheus.Gauge{&m.SnapshotDevices, &m.TrackedDevices, &m.MissingDevices, &m.LastSuccess, &m.LastCycle} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// register registers c, returning the existing collector when an identical
// one is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("registering metric: %w", err)
	}
	return c, nil
}
