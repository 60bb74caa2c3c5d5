package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic ToF bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Camera    CameraConfig    `yaml:"camera"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies this bridge instance on the MQTT bus.
type BridgeConfig struct {
	// CameraID is the identifier used in all topics for this camera.
	// One bridge process manages exactly one camera.
	CameraID string `yaml:"camera_id"`
}

// CameraConfig contains connection and acquisition settings for the camera.
// These are the initial values of the runtime parameter set; they can be
// changed at runtime through the set_params request.
type CameraConfig struct {
	// Address is the network address of the camera.
	Address string `yaml:"address"`

	// XMLRPCPort is the camera's configuration/command port.
	XMLRPCPort int `yaml:"xmlrpc_port"`

	// PCICPort is the camera's data streaming port.
	PCICPort int `yaml:"pcic_port"`

	// Password is the camera edit-session credential (empty if unset).
	Password string `yaml:"password"`

	// SchemaMask is the legacy 16-bit buffer selection bitmask.
	// Ignored when Buffers is non-empty.
	SchemaMask uint16 `yaml:"schema_mask"`

	// Buffers is the explicit modern buffer selection
	// (e.g., ["radial_distance", "xyz", "rgb"]). Takes precedence over
	// SchemaMask when non-empty.
	Buffers []string `yaml:"buffers"`

	// TimeoutMillis is the per-frame wait timeout in milliseconds.
	TimeoutMillis int `yaml:"timeout_millis"`

	// TimeoutToleranceSecs is added to TimeoutMillis for the effective
	// frame wait bound.
	TimeoutToleranceSecs float64 `yaml:"timeout_tolerance_secs"`

	// FrameLatencyThresh is the inter-frame gap (seconds) beyond which a
	// latency warning is logged.
	FrameLatencyThresh float64 `yaml:"frame_latency_thresh"`

	// SyncClocks requests a best-effort camera clock synchronization
	// during configure.
	SyncClocks bool `yaml:"sync_clocks"`

	// CameraFrame is the frame id stamped on point cloud and extrinsics
	// messages.
	CameraFrame string `yaml:"camera_frame"`

	// OpticalFrame is the frame id stamped on image messages.
	OpticalFrame string `yaml:"optical_frame"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// StoreConfig contains settings for the SQLite parameter store.
type StoreConfig struct {
	// Enabled toggles parameter persistence and the transition audit trail.
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig contains InfluxDB frame telemetry settings.
type TelemetryConfig struct {
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TOFBRIDGE_SECTION_KEY
// For example: TOFBRIDGE_CAMERA_ADDRESS, TOFBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults for a local camera.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			CameraID: "camera-01",
		},
		Camera: CameraConfig{
			Address:              "192.168.0.69",
			XMLRPCPort:           80,
			PCICPort:             50010,
			SchemaMask:           0xf,
			TimeoutMillis:        500,
			TimeoutToleranceSecs: 5.0,
			FrameLatencyThresh:   60.0,
			SyncClocks:           false,
			CameraFrame:          "camera_link",
			OpticalFrame:         "camera_optical_link",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tofbridge",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Store: StoreConfig{
			Enabled:     true,
			Path:        "./data/tofbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TOFBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("TOFBRIDGE_CAMERA_ID"); v != "" {
		cfg.Bridge.CameraID = v
	}

	// Camera
	if v := os.Getenv("TOFBRIDGE_CAMERA_ADDRESS"); v != "" {
		cfg.Camera.Address = v
	}
	if v := os.Getenv("TOFBRIDGE_CAMERA_PASSWORD"); v != "" {
		cfg.Camera.Password = v
	}
	if v := os.Getenv("TOFBRIDGE_CAMERA_PCIC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Camera.PCICPort = port
		}
	}

	// MQTT
	if v := os.Getenv("TOFBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TOFBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TOFBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Store
	if v := os.Getenv("TOFBRIDGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	// Telemetry
	if v := os.Getenv("TOFBRIDGE_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.CameraID == "" {
		errs = append(errs, "bridge.camera_id is required")
	}

	// Camera validation
	if c.Camera.Address == "" {
		errs = append(errs, "camera.address is required")
	}
	if c.Camera.XMLRPCPort < 1 || c.Camera.XMLRPCPort > 65535 {
		errs = append(errs, "camera.xmlrpc_port must be between 1 and 65535")
	}
	if c.Camera.PCICPort < 1 || c.Camera.PCICPort > 65535 {
		errs = append(errs, "camera.pcic_port must be between 1 and 65535")
	}
	if c.Camera.TimeoutMillis <= 0 {
		errs = append(errs, "camera.timeout_millis must be positive")
	}
	if c.Camera.TimeoutToleranceSecs < 0 {
		errs = append(errs, "camera.timeout_tolerance_secs must not be negative")
	}
	if c.Camera.FrameLatencyThresh <= 0 {
		errs = append(errs, "camera.frame_latency_thresh must be positive")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	// Store validation
	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, "store.path is required when store.enabled")
	}

	// Telemetry validation
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry.enabled")
		}
		if c.Telemetry.Bucket == "" {
			errs = append(errs, "telemetry.bucket is required when telemetry.enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// FrameTimeout returns the effective frame wait bound: the acquisition
// timeout plus the configured tolerance.
func (c *CameraConfig) FrameTimeout() time.Duration {
	return time.Duration(c.TimeoutMillis)*time.Millisecond +
		time.Duration(c.TimeoutToleranceSecs*float64(time.Second))
}
