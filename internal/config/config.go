package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Output channel modes.
const (
	OutputConsole = "console"
	OutputMQTT    = "mqtt"
	OutputArtisan = "artisan"
)

// Config is the daemon configuration file.
type Config struct {
	Version int `yaml:"version"`

	// Output selects the channel readings are sent to: console, mqtt,
	// or artisan.
	Output string `yaml:"output"`

	// Unit is the preferred temperature unit for single-unit outputs:
	// "C" or "F".
	Unit string `yaml:"unit"`

	// ReadIntervalSeconds is the delay between sensor polls.
	ReadIntervalSeconds float64 `yaml:"read_interval_seconds"`

	// MaxErrors is the consecutive-failure ceiling that triggers the
	// terminal shutdown.
	MaxErrors int `yaml:"max_errors"`

	// ErrorPatternThreshold is the consecutive-failure count at which
	// the LED error pattern starts.
	ErrorPatternThreshold int `yaml:"error_pattern_threshold"`

	// NetworkCheckIntervalSeconds is how often network reachability is
	// verified for network-backed outputs.
	NetworkCheckIntervalSeconds float64 `yaml:"network_check_interval_seconds"`

	// NetworkProbeAddr is the address dialed to test reachability.
	NetworkProbeAddr string `yaml:"network_probe_addr,omitempty"`

	// Simulate replaces the thermocouple with the roast-curve simulator.
	Simulate bool `yaml:"simulate"`

	Server    ServerConfig    `yaml:"server"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// ServerConfig configures the Artisan WebSocket server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MQTTConfig configures the MQTT telemetry output.
type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	BaseTopic string `yaml:"base_topic"`
}

// DiscoveryConfig configures mDNS announcement of the WebSocket endpoint.
type DiscoveryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	InstanceName string `yaml:"instance_name,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version:                     1,
		Output:                      OutputArtisan,
		Unit:                        "C",
		ReadIntervalSeconds:         1.0,
		MaxErrors:                   10,
		ErrorPatternThreshold:       3,
		NetworkCheckIntervalSeconds: 30,
		Server: ServerConfig{
			Host: "",
			Port: 8765,
		},
		MQTT: MQTTConfig{
			Port:      1883,
			BaseTopic: "roastlink/monitor01",
		},
		Discovery: DiscoveryConfig{
			Enabled:      true,
			InstanceName: "roastlink",
		},
	}
}

// Load reads a config file, layering it over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field consistency.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}

	switch c.Output {
	case OutputConsole, OutputMQTT, OutputArtisan:
	default:
		return fmt.Errorf("unknown output mode: %q (must be console, mqtt, or artisan)", c.Output)
	}

	if c.Unit != "C" && c.Unit != "F" {
		return fmt.Errorf("invalid temperature unit: %q (must be C or F)", c.Unit)
	}

	if c.ReadIntervalSeconds <= 0 {
		return fmt.Errorf("read_interval_seconds must be positive, got %v", c.ReadIntervalSeconds)
	}
	if c.MaxErrors < 1 {
		return fmt.Errorf("max_errors must be at least 1, got %d", c.MaxErrors)
	}
	if c.ErrorPatternThreshold < 1 || c.ErrorPatternThreshold > c.MaxErrors {
		return fmt.Errorf("error_pattern_threshold must be in [1, max_errors], got %d", c.ErrorPatternThreshold)
	}
	if c.NetworkCheckIntervalSeconds <= 0 {
		return fmt.Errorf("network_check_interval_seconds must be positive, got %v", c.NetworkCheckIntervalSeconds)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Output == OutputMQTT {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt output requires a broker address")
		}
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			return fmt.Errorf("invalid mqtt port: %d", c.MQTT.Port)
		}
		if c.MQTT.BaseTopic == "" {
			return fmt.Errorf("mqtt output requires a base topic")
		}
	}

	return nil
}

// ReadInterval returns the poll interval as a duration.
func (c *Config) ReadInterval() time.Duration {
	return time.Duration(c.ReadIntervalSeconds * float64(time.Second))
}

// NetworkCheckInterval returns the health-check interval as a duration.
func (c *Config) NetworkCheckInterval() time.Duration {
	return time.Duration(c.NetworkCheckIntervalSeconds * float64(time.Second))
}
