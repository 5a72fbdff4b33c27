package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Device kinds accepted in playout.devices[].kind.
const (
	DeviceKindPanasonicPTZ = "panasonic_ptz"
	DeviceKindSingularLive = "singular_live"
)

// Compare modes accepted in playout.compare_mode.
const (
	CompareModeValue  = "value"
	CompareModeRecord = "record"
)

// Config is the root configuration structure for Gray Logic Playout.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Playout  PlayoutConfig  `yaml:"playout"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// PlayoutConfig contains the reconciliation core settings.
type PlayoutConfig struct {
	// MappingFile is the YAML layer→device mapping table.
	MappingFile string `yaml:"mapping_file"`

	// WatchMapping reloads the mapping table when the file changes.
	WatchMapping bool `yaml:"watch_mapping"`

	// CompareMode selects flat-field change detection: "value" or "record".
	// "record" also treats a new origin object as a change.
	CompareMode string `yaml:"compare_mode"`

	// SlowCommandThresholdMS is the dispatch lag above which a
	// slow-command event is emitted.
	SlowCommandThresholdMS int `yaml:"slow_command_threshold_ms"`

	// BurstConcurrency caps concurrent executions of co-scheduled commands
	// in BURST mode. 0 means unbounded.
	BurstConcurrency int `yaml:"burst_concurrency"`

	// HistoryWindow is how many seconds of superseded state history are kept.
	HistoryWindow int `yaml:"history_window"`

	// HistoryCleanupInterval is how often (seconds) the window is enforced.
	HistoryCleanupInterval int `yaml:"history_cleanup_interval"`

	// PersistHistory writes each accepted snapshot to the database.
	PersistHistory bool `yaml:"persist_history"`

	// RestoreHistory loads persisted history on device init.
	RestoreHistory bool `yaml:"restore_history"`

	Ingress IngressConfig  `yaml:"ingress"`
	Devices []DeviceConfig `yaml:"devices"`
}

// IngressConfig controls where timeline snapshots arrive from.
type IngressConfig struct {
	MQTT bool `yaml:"mqtt"`
}

// DeviceConfig describes one output device instance.
type DeviceConfig struct {
	ID      string `yaml:"id"`
	Kind    string `yaml:"kind"`
	Enabled *bool  `yaml:"enabled"`

	// Panasonic PTZ
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	HTTPS          bool   `yaml:"https"`
	ProbeInterval  int    `yaml:"probe_interval"`
	RequestTimeout int    `yaml:"request_timeout"`

	// Singular.Live
	AccessToken string `yaml:"access_token"`
	APIURL      string `yaml:"api_url"`
}

// IsEnabled reports whether the device should be started. Devices are
// enabled unless explicitly disabled.
func (d DeviceConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// GetProbeInterval returns the connection probe period as a Duration.
func (d DeviceConfig) GetProbeInterval() time.Duration {
	return time.Duration(d.ProbeInterval) * time.Second
}

// GetRequestTimeout returns the per-command HTTP timeout as a Duration.
func (d DeviceConfig) GetRequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeout) * time.Second
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDeviceDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic Playout",
		},
		Database: DatabaseConfig{
			Path:        "./data/playout.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-playout",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "graylogic_playout",
		},
		Playout: PlayoutConfig{
			MappingFile:            "configs/mapping.yaml",
			WatchMapping:           true,
			CompareMode:            CompareModeValue,
			SlowCommandThresholdMS: 40,
			HistoryWindow:          300,
			HistoryCleanupInterval: 30,
			Ingress: IngressConfig{
				MQTT: true,
			},
		},
	}
}

// applyDeviceDefaults fills per-kind defaults that depend on the device kind.
func applyDeviceDefaults(cfg *Config) {
	for i := range cfg.Playout.Devices {
		d := &cfg.Playout.Devices[i]
		switch d.Kind {
		case DeviceKindPanasonicPTZ:
			if d.Port == 0 {
				d.Port = 80
			}
			if d.ProbeInterval == 0 {
				d.ProbeInterval = 10
			}
			if d.RequestTimeout == 0 {
				d.RequestTimeout = 5
			}
		case DeviceKindSingularLive:
			if d.APIURL == "" {
				d.APIURL = "https://app.singular.live/apiv1/control"
			}
			if d.RequestTimeout == 0 {
				d.RequestTimeout = 10
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Playout
	if v := os.Getenv("GRAYLOGIC_MAPPING_FILE"); v != "" {
		cfg.Playout.MappingFile = v
	}

	// Device credentials never need to live in the config file.
	for i := range cfg.Playout.Devices {
		d := &cfg.Playout.Devices[i]
		if v := os.Getenv(DeviceEnvKey(d.ID, "ACCESS_TOKEN")); v != "" {
			d.AccessToken = v
		}
	}
}

// DeviceEnvKey returns the environment variable name for a per-device
// override, e.g. DeviceEnvKey("gfx-1", "ACCESS_TOKEN") is
// GRAYLOGIC_DEVICE_GFX_1_ACCESS_TOKEN.
func DeviceEnvKey(deviceID, key string) string {
	id := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(deviceID))
	return "GRAYLOGIC_DEVICE_" + id + "_" + key
}

// Validate checks the configuration for errors.
//
// Device credentials are deliberately not required here: a missing
// Singular.Live access token fails that device's init only, so one
// misconfigured device never stops the others.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Playout.MappingFile == "" {
		errs = append(errs, "playout.mapping_file is required")
	}

	switch c.Playout.CompareMode {
	case CompareModeValue, CompareModeRecord:
	default:
		errs = append(errs, fmt.Sprintf("playout.compare_mode %q must be %q or %q",
			c.Playout.CompareMode, CompareModeValue, CompareModeRecord))
	}

	if c.Playout.SlowCommandThresholdMS <= 0 {
		errs = append(errs, "playout.slow_command_threshold_ms must be positive")
	}
	if c.Playout.BurstConcurrency < 0 {
		errs = append(errs, "playout.burst_concurrency must not be negative")
	}
	if c.Playout.HistoryWindow <= 0 {
		errs = append(errs, "playout.history_window must be positive")
	}
	if c.Playout.HistoryCleanupInterval <= 0 {
		errs = append(errs, "playout.history_cleanup_interval must be positive")
	}

	seen := make(map[string]bool, len(c.Playout.Devices))
	for i, d := range c.Playout.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("playout.devices[%d].id is required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("playout.devices[%d].id %q is duplicated", i, d.ID))
		}
		seen[d.ID] = true

		switch d.Kind {
		case DeviceKindPanasonicPTZ:
			if d.Port < 1 || d.Port > 65535 {
				errs = append(errs, fmt.Sprintf("playout.devices[%d].port must be between 1 and 65535", i))
			}
			if d.ProbeInterval <= 0 {
				errs = append(errs, fmt.Sprintf("playout.devices[%d].probe_interval must be positive", i))
			}
		case DeviceKindSingularLive:
			if d.APIURL == "" {
				errs = append(errs, fmt.Sprintf("playout.devices[%d].api_url is required", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("playout.devices[%d].kind %q is not supported", i, d.Kind))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSlowCommandThreshold returns the slow-command threshold as a Duration.
func (c *Config) GetSlowCommandThreshold() time.Duration {
	return time.Duration(c.Playout.SlowCommandThresholdMS) * time.Millisecond
}

// GetHistoryWindow returns the history retention window as a Duration.
func (c *Config) GetHistoryWindow() time.Duration {
	return time.Duration(c.Playout.HistoryWindow) * time.Second
}

// GetHistoryCleanupInterval returns the cleanup period as a Duration.
func (c *Config) GetHistoryCleanupInterval() time.Duration {
	return time.Duration(c.Playout.HistoryCleanupInterval) * time.Second
}
