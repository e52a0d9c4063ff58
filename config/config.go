// Package config loads the host-process configuration from a YAML file
// with environment-variable overrides for deployment tweaks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type SerialConfig struct {
	Port         string   `yaml:"port"`
	Baud         int      `yaml:"baud"`
	AckTimeout   Duration `yaml:"ack_timeout"`
	ReadyTimeout Duration `yaml:"ready_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML scalars like
// "500ms" (yaml.v3 only handles integer nanoseconds natively).
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	// Addr is the base URL of the event dashboard. Empty disables telemetry.
	Addr string `yaml:"addr"`
}

// Default returns the stock configuration: the Arduino's usual port on a
// Pi, the baud rate the firmware is flashed with, and generous protocol
// timeouts (the executor takes ~2s to reset after the port opens).
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         "/dev/ttyACM0",
			Baud:         9600,
			AckTimeout:   Duration(500 * time.Millisecond),
			ReadyTimeout: Duration(5 * time.Second),
		},
		Server: ServerConfig{
			Addr:           "0.0.0.0:5001",
			MetricsEnabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error; the defaults and
// environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Environment overrides, useful on the Pi where editing a unit file is
// easier than shipping a new YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("RUFUS_SERIAL_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("RUFUS_SERIAL_BAUD"); v != "" {
		if baud, err := strconv.Atoi(v); err == nil {
			c.Serial.Baud = baud
		}
	}
	if v := os.Getenv("RUFUS_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("RUFUS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RUFUS_TELEMETRY_ADDR"); v != "" {
		c.Telemetry.Addr = v
	}
}
