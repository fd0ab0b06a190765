package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ecg-monitor/backend/internal/ecg"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	ECG       ecg.Config      `yaml:"ecg"`
	Acquire   AcquireConfig   `yaml:"acquire"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	Host      string `yaml:"host"`
	AuthToken string `yaml:"auth_token"` // required for /api/shutdown; empty disables the route
}

// AcquireConfig selects the sample source. Mode "auto" tries the device and
// falls back to the simulator when it cannot be opened.
type AcquireConfig struct {
	Mode       string `yaml:"mode"` // auto | simulator | device
	DevicePath string `yaml:"device_path"`
}

// TelemetryConfig selects an optional outbound publisher for BPM updates and
// event alerts. Backend "none" (or empty) disables publishing.
type TelemetryConfig struct {
	Backend string `yaml:"backend"` // none | nats | mqtt

	NATSURL       string `yaml:"nats_url"`
	ParamsSubject string `yaml:"params_subject"`
	EventsSubject string `yaml:"events_subject"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
}

type MonitorConfig struct {
	SnapshotInterval Duration `yaml:"snapshot_interval"` // cadence of ws data frames
	AlertThrottle    Duration `yaml:"alert_throttle"`    // coalescing window for ws alert frames
}

// Duration wraps time.Duration so configs can say "250ms" instead of a raw
// nanosecond count, which yaml.v3 cannot parse on its own.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		ECG: ecg.DefaultConfig(),
		Acquire: AcquireConfig{
			Mode:       "auto",
			DevicePath: "/dev/ttyACM0",
		},
		Telemetry: TelemetryConfig{
			Backend:       "none",
			NATSURL:       "nats://127.0.0.1:4222",
			ParamsSubject: "ecg.params",
			EventsSubject: "ecg.events",
			MQTTPort:      1883,
			MQTTTopic:     "ecg",
		},
		Monitor: MonitorConfig{
			SnapshotInterval: Duration(250 * time.Millisecond),
			AlertThrottle:    Duration(100 * time.Millisecond),
		},
	}
}

// Load reads the YAML config at path on top of built-in defaults and
// validates the result. A missing file is not an error: the defaults are
// returned so the monitor can run unconfigured in simulator mode.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.validate()
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if err := c.ECG.Validate(); err != nil {
		return fmt.Errorf("ecg: %w", err)
	}

	switch c.Acquire.Mode {
	case "auto", "simulator", "device":
	default:
		return fmt.Errorf("acquire: unknown mode %q", c.Acquire.Mode)
	}

	switch c.Telemetry.Backend {
	case "", "none", "nats", "mqtt":
	default:
		return fmt.Errorf("telemetry: unknown backend %q", c.Telemetry.Backend)
	}

	if c.Monitor.SnapshotInterval <= 0 {
		return fmt.Errorf("monitor: snapshot_interval must be positive")
	}
	if c.Monitor.AlertThrottle <= 0 {
		return fmt.Errorf("monitor: alert_throttle must be positive")
	}
	return nil
}
