// graytrack polls a one2track GPS tracker account and publishes every
// tracker's position, zone and battery state to MQTT, InfluxDB, a REST API
// and WebSocket subscribers.
//
// One coordinator fetches the whole account on a fixed interval; each
// tracker reconciles itself against the shared snapshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/gray-logic-tracker/migrations"

	"github.com/nerrad567/gray-logic-tracker/internal/api"
	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/bridges/one2track"
	"github.com/nerrad567/gray-logic-tracker/internal/device"
	"github.com/nerrad567/gray-logic-tracker/internal/host"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tracker/internal/location"
	"github.com/nerrad567/gray-logic-tracker/internal/metrics"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting graytrack",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Zones
	zones := location.NewResolver(location.NewSQLiteZoneRepository(db.DB))
	zones.SetLogger(log.Component("zones"))
	if seedErr := zones.Seed(ctx, seedZones(cfg)); seedErr != nil {
		return fmt.Errorf("seeding zones: %w", seedErr)
	}
	log.Info("zones loaded", "zones", len(zones.ListZones()))

	// Device catalogue
	catalogue := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	catalogue.SetLogger(log.Component("catalogue"))
	if refreshErr := catalogue.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device catalogue: %w", refreshErr)
	}

	// Audit trail of operator actions
	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditRecorder := audit.NewRecorder(auditRepo, log.Component("audit"))
	auditRecorder.Start(ctx)
	defer auditRecorder.Stop()

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connection established")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		influxClient = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	checks := map[string]HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Prometheus
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	serviceMetrics, err := metrics.New(promRegistry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// WebSocket hub, shared by the API server and the broadcast sink
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	// Host and its sinks
	trackerHost := host.New(host.Options{
		Sinks:  buildSinks(cfg, mqttClient, influxClient, hub, catalogue),
		Logger: log.Component("host"),
	})
	defer trackerHost.Close()

	// one2track fetcher and coordinator
	fetcher, err := one2track.NewClient(one2track.ClientConfig{
		DevicesURL:     cfg.One2Track.DevicesURL(),
		Username:       cfg.One2Track.Username,
		Password:       cfg.One2Track.Password,
		RequestTimeout: cfg.One2Track.RequestTimeout,
		Logger:         log.Component("one2track"),
	})
	if err != nil {
		return fmt.Errorf("creating one2track client: %w", err)
	}

	coord, err := tracker.NewCoordinator(coordinatorOptions(cfg, fetcher, log))
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	var refreshWriter metrics.RefreshWriter
	if influxClient != nil {
		refreshWriter = influxClient
	}
	metricsObserver := metrics.NewObserver(serviceMetrics, coord.Registry(), refreshWriter)

	health := one2track.NewHealthReporter(one2track.HealthReporterConfig{
		Version:   version,
		Interval:  cfg.One2Track.HealthInterval,
		Publisher: mqttClient,
		Source:    coord,
		Logger:    log.Component("health"),
	})

	// Discovery and the first refresh. A failure here is retried on schedule.
	// Metrics and health observe after discovery so the first cycle already
	// counts the devices it creates.
	trackerLog := log.Component("tracker")
	_, err = tracker.Setup(ctx, coord, tracker.DiscoveryOptions{
		Host:               trackerHost,
		DiscoverNewDevices: cfg.One2Track.DiscoverNewDevices,
		Logger:             trackerLog,
		Factory: func(rec tracker.DeviceRecord) *tracker.TrackedDevice {
			return tracker.NewTrackedDevice(rec, tracker.TrackedDeviceOptions{
				Notifier: trackerHost,
				Zones:    zones,
				Registry: coord.Registry(),
				Logger:   trackerLog,
			})
		},
	}, metricsObserver, health)
	var failure *tracker.UpdateFailedError
	switch {
	case errors.As(err, &failure):
		log.Warn("initial refresh failed, retrying on schedule", "error", err)
	case err != nil:
		return fmt.Errorf("setting up discovery: %w", err)
	default:
		log.Info("initial refresh complete", "trackers", trackerHost.EntityCount())
	}

	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	defer coord.Stop()

	health.Start(ctx)
	defer health.Stop()

	commands := one2track.NewCommandHandler(ctx, mqttClient,
		audit.NewAuditedRefresher(coord, auditRecorder, audit.SourceMQTT),
		log.Component("commands"))
	if err := commands.Subscribe(); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	defer func() {
		if unsubErr := commands.Unsubscribe(); unsubErr != nil {
			log.Warn("error unsubscribing commands", "error", unsubErr)
		}
		commands.Wait()
	}()

	// API
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Metrics:     cfg.Metrics,
		Logger:      log.Component("api"),
		Host:        trackerHost,
		Coordinator: coord,
		Zones:       zones,
		Devices:     catalogue,
		DB:          db,
		MQTT:        mqttClient,
		Gatherer:    promRegistry,
		Audit:       auditRecorder,
		AuditLog:    auditRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"interval", coord.Interval(),
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	// Deferred calls run in reverse: API, commands, health, coordinator,
	// host, InfluxDB, MQTT, audit, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies infrastructure connections.
//
// Returns:
//   - error: First failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// seedZones lists the zones defined in configuration. The home zone comes
// first when the site has a location.
func seedZones(cfg *config.Config) []location.Zone {
	var zones []location.Zone
	loc := cfg.Site.Location
	if loc.Latitude != 0 || loc.Longitude != 0 {
		zones = append(zones, location.HomeZone(cfg.Site.Name, loc.Latitude, loc.Longitude, cfg.Site.HomeRadius))
	}
	for _, z := range cfg.Zones {
		zones = append(zones, location.Zone{
			Name:      z.Name,
			Latitude:  z.Latitude,
			Longitude: z.Longitude,
			Radius:    z.Radius,
			Passive:   z.Passive,
			Icon:      z.Icon,
		})
	}
	return zones
}

// coordinatorOptions maps configuration onto coordinator options.
func coordinatorOptions(cfg *config.Config, fetcher tracker.Fetcher, log *logging.Logger) tracker.CoordinatorOptions {
	opts := tracker.DefaultCoordinatorOptions(fetcher)
	if cfg.One2Track.UpdateInterval > 0 {
		opts.Interval = cfg.One2Track.UpdateInterval
	}
	if cfg.One2Track.FetchTimeout > 0 {
		opts.FetchTimeout = cfg.One2Track.FetchTimeout
	}
	opts.AlwaysPublish = cfg.One2Track.AlwaysPublish
	opts.Logger = log.Component("coordinator")
	return opts
}

// buildSinks assembles the host's publish targets. InfluxDB is skipped
// when disabled.
func buildSinks(cfg *config.Config, pub host.Publisher, influx *influxdb.Client, hub host.Broadcaster, catalogue host.Catalogue) []host.Sink {
	sinks := []host.Sink{
		host.NewMQTTSink(pub, byte(cfg.MQTT.QoS)),
		host.NewBroadcastSink(hub),
		host.NewCatalogueSink(catalogue),
	}
	if influx != nil {
		sinks = append(sinks, host.NewTelemetrySink(influx))
	}
	return sinks
}
