// Package config loads flight software configuration from a single YAML
// file. Every field has a flight default; an empty file is a valid
// configuration. There is no discovery and no override chain, the one file
// given on the command line is the whole truth.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can carry values like "90s" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full flight configuration.
type Config struct {
	// SatID is the identity every uplink command must name.
	SatID string `yaml:"sat_id"`

	// HMACKeyHex is the pre-shared command signing key, hex encoded.
	HMACKeyHex string `yaml:"hmac_key_hex"`

	Timing  Timing  `yaml:"timing"`
	Beacon  Beacon  `yaml:"beacon"`
	Radio   Radio   `yaml:"radio"`
	Storage Storage `yaml:"storage"`
	Metrics Metrics `yaml:"metrics"`
}

// Timing carries the mission loop and deployment timings.
type Timing struct {
	Tick                Duration `yaml:"tick"`
	DeployWait          Duration `yaml:"deploy_wait"`
	HeatDuration        Duration `yaml:"heat_duration"`
	CoolDuration        Duration `yaml:"cool_duration"`
	RetryWait           Duration `yaml:"retry_wait"`
	MaxRetries          int      `yaml:"max_retries"`
	TelemetryInterval   Duration `yaml:"telemetry_interval"`
	ScrubInterval       Duration `yaml:"scrub_interval"`
	ErrorRetryInterval  Duration `yaml:"error_retry_interval"`
	MaxRecoveryAttempts int      `yaml:"max_recovery_attempts"`
}

// Beacon carries the adaptive beacon settings.
type Beacon struct {
	AcquisitionInterval Duration `yaml:"acquisition_interval"`
	SteadyInterval      Duration `yaml:"steady_interval"`
	LostInterval        Duration `yaml:"lost_interval"`
	LostThreshold       Duration `yaml:"lost_threshold"`
	MinVoltage          float64  `yaml:"min_voltage"`
}

// Radio selects and configures the transport.
type Radio struct {
	// Transport is "udp", "serial", or "loopback".
	Transport string `yaml:"transport"`

	ListenAddr string `yaml:"listen_addr"`
	PeerAddr   string `yaml:"peer_addr"`

	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// Storage carries persistence paths.
type Storage struct {
	StatePath  string `yaml:"state_path"`
	FilesRoot  string `yaml:"files_root"`
	QuotaBytes int64  `yaml:"quota_bytes"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the flight defaults.
func Default() Config {
	return Config{
		SatID:      "SAT001",
		HMACKeyHex: "",
		Timing: Timing{
			Tick:                Duration(100 * time.Millisecond),
			DeployWait:          Duration(5 * time.Minute),
			HeatDuration:        Duration(90 * time.Second),
			CoolDuration:        Duration(90 * time.Second),
			RetryWait:           Duration(15 * time.Minute),
			MaxRetries:          3,
			TelemetryInterval:   Duration(time.Minute),
			ScrubInterval:       Duration(10 * time.Second),
			ErrorRetryInterval:  Duration(5 * time.Second),
			MaxRecoveryAttempts: 3,
		},
		Beacon: Beacon{
			AcquisitionInterval: Duration(time.Minute),
			SteadyInterval:      Duration(time.Hour),
			LostInterval:        Duration(5 * time.Minute),
			LostThreshold:       Duration(24 * time.Hour),
			MinVoltage:          3.3,
		},
		Radio: Radio{
			Transport:  "udp",
			ListenAddr: "127.0.0.1:8471",
			Device:     "/dev/ttyS0",
			Baud:       57600,
		},
		Storage: Storage{
			StatePath: "state.bin",
			FilesRoot: "files",
		},
		Metrics: Metrics{
			ListenAddr: "127.0.0.1:9090",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot fly.
func (c Config) Validate() error {
	if c.SatID == "" {
		return fmt.Errorf("sat_id must not be empty")
	}
	if _, err := c.Key(); err != nil {
		return err
	}
	switch c.Radio.Transport {
	case "udp", "serial", "loopback":
	default:
		return fmt.Errorf("unknown radio transport %q", c.Radio.Transport)
	}
	if c.Timing.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.Timing.MaxRecoveryAttempts < 1 {
		return fmt.Errorf("max_recovery_attempts must be at least 1")
	}
	return nil
}

// Key decodes the HMAC key. An unset key yields an empty key, usable only on
// the bench.
func (c Config) Key() ([]byte, error) {
	if c.HMACKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.HMACKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hmac_key_hex: %w", err)
	}
	return key, nil
}
