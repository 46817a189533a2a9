package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tracker/internal/location"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYTRACK_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	configContent := `
site:
  id: test-site

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
  qos: 1

influxdb:
  enabled: false

one2track:
  base_url: "https://www.one2trackgps.com"
  account_id: "1234"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYTRACK_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	if err := healthCheck(ctx, map[string]HealthChecker{"a": fakeChecker{}, "b": fakeChecker{}}); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}

	boom := errors.New("broker down")
	err := healthCheck(ctx, map[string]HealthChecker{"a": fakeChecker{}, "mqtt": fakeChecker{err: boom}})
	if !errors.Is(err, boom) {
		t.Fatalf("healthCheck() error = %v, want %v", err, boom)
	}
	if got := err.Error(); got != "mqtt: broker down" {
		t.Errorf("error = %q", got)
	}
}

func TestSeedZones(t *testing.T) {
	cfg := &config.Config{}
	cfg.Site.Name = "Home"
	cfg.Site.HomeRadius = 150
	cfg.Zones = []config.ZoneConfig{
		{Name: "School", Latitude: 52.2, Longitude: 5.2, Radius: 200, Icon: "mdi:school"},
	}

	zones := seedZones(cfg)
	if len(zones) != 1 || zones[0].Name != "School" || zones[0].Icon != "mdi:school" {
		t.Fatalf("zones without site location = %+v", zones)
	}

	cfg.Site.Location.Latitude = 52.1
	cfg.Site.Location.Longitude = 5.1
	zones = seedZones(cfg)
	if len(zones) != 2 {
		t.Fatalf("len(zones) = %d, want 2", len(zones))
	}
	if zones[0].Slug != location.HomeZoneSlug || zones[0].Radius != 150 {
		t.Errorf("home zone = %+v", zones[0])
	}
}

func TestCoordinatorOptions(t *testing.T) {
	fetcher := tracker.FetcherFunc(func(context.Context) ([]tracker.DeviceRecord, error) { return nil, nil })
	log := logging.Default()

	cfg := &config.Config{}
	opts := coordinatorOptions(cfg, fetcher, log)
	defaults := tracker.DefaultCoordinatorOptions(fetcher)
	if opts.Interval != defaults.Interval || opts.FetchTimeout != defaults.FetchTimeout {
		t.Errorf("zero config should keep defaults, got interval=%v timeout=%v", opts.Interval, opts.FetchTimeout)
	}
	if opts.AlwaysPublish {
		t.Error("AlwaysPublish should follow config")
	}

	cfg.One2Track.UpdateInterval = 2 * time.Minute
	cfg.One2Track.FetchTimeout = 45 * time.Second
	cfg.One2Track.AlwaysPublish = true
	opts = coordinatorOptions(cfg, fetcher, log)
	if opts.Interval != 2*time.Minute || opts.FetchTimeout != 45*time.Second || !opts.AlwaysPublish {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Logger == nil {
		t.Error("Logger not set")
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, []byte, byte, bool) error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, any) {}

func TestBuildSinks_WithoutInflux(t *testing.T) {
	cfg := &config.Config{}
	cfg.MQTT.QoS = 1

	sinks := buildSinks(cfg, nopPublisher{}, nil, nopBroadcaster{}, nil)
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	want := []string{"mqtt", "websocket", "catalogue"}
	if len(names) != len(want) {
		t.Fatalf("sinks = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("sinks[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
