package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when GRAYTRACK_CONFIG is unset.
const DefaultPath = "configs/config.yaml"

// Path returns $GRAYTRACK_CONFIG or DefaultPath.
func Path() string {
	if v := os.Getenv("GRAYTRACK_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load builds the configuration in three layers: built-in defaults, then
// the YAML file at path, then GRAYTRACK_* environment variables. The
// result is validated before it is returned.
//
// Parameters:
//   - path: YAML file to read
//
// Returns:
//   - *Config: The merged configuration
//   - error: Read, parse or validation failure
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Site = SiteConfig{ID: "site-001", Name: "Home", HomeRadius: 100}
	cfg.Database = DatabaseConfig{Path: "./data/graytrack.db", WALMode: true, BusyTimeout: 5}

	cfg.MQTT.Broker = MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "graytrack"}
	cfg.MQTT.QoS = 1
	cfg.MQTT.Reconnect = MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60}

	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8090
	cfg.API.Timeouts = APITimeoutConfig{Read: 30, Write: 30, Idle: 60}
	cfg.WebSocket = WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

	cfg.InfluxDB.BatchSize = 100
	cfg.InfluxDB.FlushInterval = 10
	cfg.Metrics = MetricsConfig{Enabled: true, Path: "/metrics"}
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	cfg.One2Track = One2TrackConfig{
		BaseURL:        "https://www.one2trackgps.com",
		DevicesPath:    "/users/{account_id}/devices",
		UpdateInterval: time.Minute,
		FetchTimeout:   5 * time.Minute,
		RequestTimeout: 30 * time.Second,
		AlwaysPublish:  true,
		HealthInterval: 30 * time.Second,
	}
	return cfg
}

// envBinding copies one environment variable into the config. Values that
// fail to parse are ignored and the previous value stays.
type envBinding struct {
	key   string
	apply func(cfg *Config, v string)
}

func str(field func(*Config) *string) func(*Config, string) {
	return func(cfg *Config, v string) { *field(cfg) = v }
}

func integer(field func(*Config) *int) func(*Config, string) {
	return func(cfg *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*field(cfg) = n
		}
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) {
	return func(cfg *Config, v string) {
		if d, err := time.ParseDuration(v); err == nil {
			*field(cfg) = d
		}
	}
}

// envBindings lists the supported GRAYTRACK_* overrides. Secrets are
// expected here rather than in the file.
var envBindings = []envBinding{
	{"GRAYTRACK_DATABASE_PATH", str(func(c *Config) *string { return &c.Database.Path })},
	{"GRAYTRACK_MQTT_HOST", str(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"GRAYTRACK_MQTT_USERNAME", str(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"GRAYTRACK_MQTT_PASSWORD", str(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"GRAYTRACK_API_HOST", str(func(c *Config) *string { return &c.API.Host })},
	{"GRAYTRACK_API_PORT", integer(func(c *Config) *int { return &c.API.Port })},
	{"GRAYTRACK_INFLUXDB_TOKEN", str(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"GRAYTRACK_ONE2TRACK_ACCOUNT_ID", str(func(c *Config) *string { return &c.One2Track.AccountID })},
	{"GRAYTRACK_ONE2TRACK_USERNAME", str(func(c *Config) *string { return &c.One2Track.Username })},
	{"GRAYTRACK_ONE2TRACK_PASSWORD", str(func(c *Config) *string { return &c.One2Track.Password })},
	{"GRAYTRACK_ONE2TRACK_UPDATE_INTERVAL", duration(func(c *Config) *time.Duration { return &c.One2Track.UpdateInterval })},
	{"GRAYTRACK_LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
}

func applyEnvOverrides(cfg *Config) {
	for _, b := range envBindings {
		if v, ok := os.LookupEnv(b.key); ok && v != "" {
			b.apply(cfg, v)
		}
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Site.HomeRadius > 0, "site.home_radius must be positive")
	check(c.Database.Path != "", "database.path is required")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	check(!c.InfluxDB.Enabled || (c.InfluxDB.URL != "" && c.InfluxDB.Bucket != ""),
		"influxdb.url and influxdb.bucket are required when influxdb is enabled")

	errs = append(errs, c.One2Track.problems()...)

	seen := make(map[string]bool, len(c.Zones))
	for i, z := range c.Zones {
		if z.Name == "" {
			errs = append(errs, fmt.Sprintf("zones[%d].name is required", i))
		} else if seen[z.Name] {
			errs = append(errs, fmt.Sprintf("zones[%d].name %q is duplicated", i, z.Name))
		}
		seen[z.Name] = true
		check(z.Radius > 0, "zones[%d].radius must be positive", i)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// problems lists what is wrong with the one2track section.
func (o One2TrackConfig) problems() []string {
	var p []string
	if o.BaseURL == "" {
		p = append(p, "one2track.base_url is required")
	} else if u, err := url.Parse(o.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		p = append(p, "one2track.base_url must be an absolute URL")
	}
	if strings.Contains(o.DevicesPath, "{account_id}") && o.AccountID == "" {
		p = append(p, "one2track.account_id is required (set GRAYTRACK_ONE2TRACK_ACCOUNT_ID)")
	}
	if o.UpdateInterval <= 0 {
		p = append(p, "one2track.update_interval must be positive")
	}
	if o.FetchTimeout <= 0 {
		p = append(p, "one2track.fetch_timeout must be positive")
	}
	if o.RequestTimeout <= 0 || (o.FetchTimeout > 0 && o.RequestTimeout > o.FetchTimeout) {
		p = append(p, "one2track.request_timeout must be positive and not exceed fetch_timeout")
	}
	if o.HealthInterval <= 0 {
		p = append(p, "one2track.health_interval must be positive")
	}
	return p
}

// GetReadTimeout returns api.timeouts.read as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns api.timeouts.write as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns api.timeouts.idle as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// DevicesURL returns the absolute URL of the account's device list.
func (o One2TrackConfig) DevicesURL() string {
	path := strings.ReplaceAll(o.DevicesPath, "{account_id}", url.PathEscape(o.AccountID))
	return strings.TrimRight(o.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
