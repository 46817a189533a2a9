package config

import "time"

// Config mirrors configs/config.yaml.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	One2Track One2TrackConfig `yaml:"one2track"`
	Zones     []ZoneConfig    `yaml:"zones"`
}

// SiteConfig describes the household. A zero Location disables the home zone.
type SiteConfig struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Location   LocationConfig `yaml:"location"`
	HomeRadius float64        `yaml:"home_radius"` // metres
}

type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig locates the SQLite file. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists allowed origins. An empty AllowedOrigins list permits
// every origin, which suits a LAN-only install.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the live event stream. Path is relative to /api/v1;
// intervals are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig enables position history. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects level, format (json or text) and output
// (stdout, stderr or file).
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// One2TrackConfig configures the portal bridge and the polling coordinator.
type One2TrackConfig struct {
	BaseURL   string `yaml:"base_url"`
	AccountID string `yaml:"account_id"`

	// DevicesPath is joined to BaseURL; "{account_id}" is substituted.
	DevicesPath string `yaml:"devices_path"`

	// Portal credentials, sent as HTTP basic auth. Keep them in the
	// environment rather than the file.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	UpdateInterval time.Duration `yaml:"update_interval"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`   // whole fetch
	RequestTimeout time.Duration `yaml:"request_timeout"` // single HTTP request

	// AlwaysPublish delivers every successful snapshot. When false only the
	// first one after start reaches the trackers.
	AlwaysPublish bool `yaml:"always_publish"`

	// DiscoverNewDevices adopts trackers first seen after startup.
	DiscoverNewDevices bool `yaml:"discover_new_devices"`

	HealthInterval time.Duration `yaml:"health_interval"`
}

// ZoneConfig seeds one geofence. Radius is in metres.
type ZoneConfig struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Radius    float64 `yaml:"radius"`
	Passive   bool    `yaml:"passive"`
	Icon      string  `yaml:"icon"`
}
