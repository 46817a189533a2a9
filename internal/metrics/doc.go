// Package metrics exposes Prometheus collectors for the tracker service.
//
// An Observer subscribes to the coordinator like any other tracker.Listener
// and turns each refresh outcome into counter, gauge and histogram updates.
// When a RefreshWriter is configured the same outcome is also written to the
// time-series database.
//
// Collectors are registered on a caller-supplied prometheus.Registerer so
// tests can use a private registry:
//
//	reg := prometheus.NewRegistry()
//	m, err := metrics.New(reg)
//	obs := metrics.NewObserver(m, coord.Registry(), influx)
//	coord.AddObserver(obs)
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics
