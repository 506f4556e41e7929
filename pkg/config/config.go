// Package config loads the fleet file shared by the simulator and the
// coordinator.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultMQTTURL   = "tcp://127.0.0.1:1883"
	DefaultGameAddr  = ":3002"
	DefaultPartSize  = 4096
	DefaultTickMs    = 100
	DefaultRetryMs   = 500
	DefaultStepMs    = 10
	DefaultTopicRoot = "fleet"
)

// ErrUnsupportedFormat is returned for files which are neither yaml nor toml.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config is the fleet file.
type Config struct {
	Robots      []RobotConfig     `yaml:"robots" toml:"robots"`
	Coordinator CoordinatorConfig `yaml:"coordinator" toml:"coordinator"`
	Simulator   SimulatorConfig   `yaml:"simulator" toml:"simulator"`
}

// RobotConfig is one robot of the fleet.
type RobotConfig struct {
	Name string `yaml:"name" toml:"name"`
	// Addr is host:port of the robot, defaulting to its well-known address.
	Addr string `yaml:"addr" toml:"addr"`
	// FailJoin makes a simulated robot refuse to associate.
	FailJoin bool `yaml:"fail_join" toml:"fail_join"`
}

// CoordinatorConfig configures the coordinator.
type CoordinatorConfig struct {
	MQTTURL   string `yaml:"mqtt_url" toml:"mqtt_url"`
	ClientID  string `yaml:"client_id" toml:"client_id"`
	TopicRoot string `yaml:"topic_root" toml:"topic_root"`
	Firmware  string `yaml:"firmware" toml:"firmware"`
	PartSize  int    `yaml:"part_size" toml:"part_size"`
	TickMs    int    `yaml:"tick_ms" toml:"tick_ms"`
	RetryMs   int    `yaml:"retry_ms" toml:"retry_ms"`
}

// SimulatorConfig configures the simulator.
type SimulatorConfig struct {
	GameAddr string `yaml:"game_addr" toml:"game_addr"`
	StepMs   int    `yaml:"step_ms" toml:"step_ms"`
}

// Load reads, validates and normalizes the fleet file at path. The format
// is chosen by the file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load fleet config: %w", err)
	}
	cfg, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("load fleet config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext, then validates and
// normalizes it.
func Parse(ext string, data []byte) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case "toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %s", undecoded[0])
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	Normalize(cfg)
	return cfg, nil
}
