package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
  location:
    latitude: 52.37
    longitude: 4.89
  home_radius: 150
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
one2track:
  account_id: "12345"
  update_interval: 2m
  always_publish: false
  discover_new_devices: true
zones:
  - name: "School"
    latitude: 52.36
    longitude: 4.88
    radius: 200
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" || cfg.Site.HomeRadius != 150 {
		t.Errorf("Site = %+v", cfg.Site)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.One2Track.UpdateInterval != 2*time.Minute {
		t.Errorf("UpdateInterval = %v, want 2m", cfg.One2Track.UpdateInterval)
	}
	if cfg.One2Track.AlwaysPublish || !cfg.One2Track.DiscoverNewDevices {
		t.Errorf("One2Track flags = %+v", cfg.One2Track)
	}
	// Unset keys keep their defaults.
	if cfg.One2Track.FetchTimeout != 300*time.Second {
		t.Errorf("FetchTimeout = %v, want default 300s", cfg.One2Track.FetchTimeout)
	}
	if len(cfg.Zones) != 1 || cfg.Zones[0].Name != "School" {
		t.Errorf("Zones = %+v", cfg.Zones)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
one2track:
  account_id: "1"
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.One2Track.AccountID = "12345"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"zero home radius", func(c *Config) { c.Site.HomeRadius = 0 }, "site.home_radius"},
		{"relative base url", func(c *Config) { c.One2Track.BaseURL = "one2track" }, "absolute URL"},
		{"missing account", func(c *Config) { c.One2Track.AccountID = "" }, "account_id"},
		{"account not needed", func(c *Config) {
			c.One2Track.AccountID = ""
			c.One2Track.DevicesPath = "/api/devices"
		}, ""},
		{"zero interval", func(c *Config) { c.One2Track.UpdateInterval = 0 }, "update_interval"},
		{"request exceeds fetch", func(c *Config) { c.One2Track.RequestTimeout = time.Hour }, "request_timeout"},
		{"zero health interval", func(c *Config) { c.One2Track.HealthInterval = 0 }, "health_interval"},
		{"unnamed zone", func(c *Config) { c.Zones = []ZoneConfig{{Radius: 10}} }, "zones[0].name"},
		{"duplicate zone", func(c *Config) {
			c.Zones = []ZoneConfig{{Name: "A", Radius: 10}, {Name: "A", Radius: 10}}
		}, "duplicated"},
		{"zone radius", func(c *Config) { c.Zones = []ZoneConfig{{Name: "A"}} }, "zones[0].radius"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "site.id") || !strings.Contains(err.Error(), "api.port") {
		t.Errorf("Validate() error = %v, want both problems reported", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYTRACK_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYTRACK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYTRACK_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYTRACK_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYTRACK_API_HOST", "192.168.1.1")
	t.Setenv("GRAYTRACK_API_PORT", "9000")
	t.Setenv("GRAYTRACK_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYTRACK_ONE2TRACK_ACCOUNT_ID", "777")
	t.Setenv("GRAYTRACK_ONE2TRACK_USERNAME", "parent@example.com")
	t.Setenv("GRAYTRACK_ONE2TRACK_PASSWORD", "hunter2")
	t.Setenv("GRAYTRACK_ONE2TRACK_UPDATE_INTERVAL", "90s")
	t.Setenv("GRAYTRACK_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9000},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"One2Track.AccountID", cfg.One2Track.AccountID, "777"},
		{"One2Track.Username", cfg.One2Track.Username, "parent@example.com"},
		{"One2Track.Password", cfg.One2Track.Password, "hunter2"},
		{"One2Track.UpdateInterval", cfg.One2Track.UpdateInterval, 90 * time.Second},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_BadNumbersIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYTRACK_API_PORT", "not-a-port")
	t.Setenv("GRAYTRACK_ONE2TRACK_UPDATE_INTERVAL", "soon")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8090 || cfg.One2Track.UpdateInterval != 60*time.Second {
		t.Errorf("bad values should leave defaults: port=%d interval=%v", cfg.API.Port, cfg.One2Track.UpdateInterval)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
	if !cfg.One2Track.AlwaysPublish || cfg.One2Track.DiscoverNewDevices {
		t.Errorf("defaultConfig one2track flags = %+v", cfg.One2Track)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("GRAYTRACK_CONFIG", "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("GRAYTRACK_CONFIG", "/etc/graytrack.yaml")
	if got := Path(); got != "/etc/graytrack.yaml" {
		t.Errorf("Path() = %q", got)
	}
}

func TestDevicesURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  One2TrackConfig
		want string
	}{
		{"substitutes account", One2TrackConfig{BaseURL: "https://portal.example", AccountID: "42", DevicesPath: "/users/{account_id}/devices"}, "https://portal.example/users/42/devices"},
		{"trailing slash", One2TrackConfig{BaseURL: "https://portal.example/", DevicesPath: "api/devices"}, "https://portal.example/api/devices"},
		{"escapes account", One2TrackConfig{BaseURL: "http://x", AccountID: "a b", DevicesPath: "/users/{account_id}"}, "http://x/users/a%20b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DevicesURL(); got != tt.want {
				t.Errorf("DevicesURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
