package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override.
const envPrefix = "GRAYLOGIC_INSTEON_"

// Config is the root configuration for the Insteon bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Modem    ModemConfig    `yaml:"modem"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Devices  []DeviceConfig `yaml:"devices"`
	Scenes   []SceneConfig  `yaml:"scenes"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance in health reports.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`
}

// ModemConfig describes the PowerLinc modem serial connection.
type ModemConfig struct {
	// Port is the serial device, e.g. /dev/ttyUSB0.
	Port string `yaml:"port"`

	// BaudRate defaults to 19200, the only rate the PLM speaks.
	BaudRate int `yaml:"baud_rate"`

	// AckTimeout is how long to wait for the modem echo (milliseconds).
	// Default: 2000.
	AckTimeout int `yaml:"ack_timeout"`
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

	// Password is never logged. Use String or JSON marshalling for output.
	Password string `yaml:"password"`
}

// String returns the credentials with the password masked.
func (a MQTTAuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, password)
}

// MarshalJSON implements json.Marshaler to redact the password.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	type redacted MQTTAuthConfig
	safe := redacted(a)
	if safe.Password != "" {
		safe.Password = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite settings for the engine cache.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// CatalogConfig locates the device-type catalog.
type CatalogConfig struct {
	// Path is the YAML catalog file. Optional; devices then carry only the
	// product key.
	Path string `yaml:"path"`
}

// DeviceConfig declares one device on the network.
type DeviceConfig struct {
	// Address is "1A.2B.3C" for Insteon or "A1" for X10.
	Address string `yaml:"address"`

	// ProductKey selects the catalog entry, e.g. "2477D".
	ProductKey string `yaml:"product_key"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// DeviceID is the Gray Logic device identifier used in state messages.
	// Default: the address.
	DeviceID string `yaml:"device_id"`
}

// SceneConfig declares a modem ALL-Link group.
type SceneConfig struct {
	Group int    `yaml:"group"`
	Name  string `yaml:"name"`
}

// InfluxDBConfig configures optional telemetry export.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`

	// BatchSize is points per write. Default: 100.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the maximum time between writes (seconds). Default: 10.
	FlushInterval int `yaml:"flush_interval"`
}

// APIConfig configures the local read-only status API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP server timeouts (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level"`

	// Format is json or text. Default: json.
	Format string `yaml:"format"`

	// Output is stdout or stderr. Default: stdout.
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (GRAYLOGIC_INSTEON_SECTION_KEY)
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "insteon-bridge-01",
			HealthInterval: 30,
		},
		Modem: ModemConfig{
			Port:       "/dev/ttyUSB0",
			BaudRate:   19200,
			AckTimeout: 2000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-insteon",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/insteon.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "graylogic",
			Bucket:        "insteon",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"BRIDGE_ID":      &cfg.Bridge.ID,
		"MODEM_PORT":     &cfg.Modem.Port,
		"MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"MQTT_CLIENT_ID": &cfg.MQTT.Broker.ClientID,
		"MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"DATABASE_PATH":  &cfg.Database.Path,
		"CATALOG_PATH":   &cfg.Catalog.Path,
		"INFLUXDB_URL":   &cfg.InfluxDB.URL,
		"INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"LOG_LEVEL":      &cfg.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MQTT_PORT":       &cfg.MQTT.Broker.Port,
		"MODEM_BAUD_RATE": &cfg.Modem.BaudRate,
		"API_PORT":        &cfg.API.Port,
	}
	for key, dst := range ints {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}

	if c.Modem.Port == "" {
		errs = append(errs, "modem.port is required")
	}
	if c.Modem.BaudRate < 1 {
		errs = append(errs, "modem.baud_rate must be positive")
	}
	if c.Modem.AckTimeout < 1 {
		errs = append(errs, "modem.ack_timeout must be positive")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when enabled")
		}
	}

	if c.API.Enabled && (c.API.Port < 0 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 0 and 65535")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case d.Address == "":
			errs = append(errs, fmt.Sprintf("devices[%d].address is required", i))
		case seen[strings.ToUpper(d.Address)]:
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate address %s", i, d.Address))
		}
		seen[strings.ToUpper(d.Address)] = true
	}

	groups := make(map[int]bool, len(c.Scenes))
	for i, s := range c.Scenes {
		switch {
		case s.Group < 0 || s.Group > 255:
			errs = append(errs, fmt.Sprintf("scenes[%d].group must be 0-255", i))
		case groups[s.Group]:
			errs = append(errs, fmt.Sprintf("scenes[%d]: duplicate group %d", i, s.Group))
		}
		groups[s.Group] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HealthInterval returns the health publishing interval.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// AckTimeout returns the modem echo timeout.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Modem.AckTimeout) * time.Millisecond
}
