// Package config loads go-trafficlight settings from YAML, the environment
// and command line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/teslashibe/go-trafficlight/pkg/detection"
	"github.com/teslashibe/go-trafficlight/pkg/lane"
	"github.com/teslashibe/go-trafficlight/pkg/render"
	"github.com/teslashibe/go-trafficlight/pkg/signal"
	"github.com/teslashibe/go-trafficlight/pkg/video"
	"github.com/teslashibe/go-trafficlight/pkg/web"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Environment variables read by ApplyEnv
const (
	EnvSource   = "TRAFFIC_SOURCE"
	EnvLogLevel = "LOG_LEVEL"
)

// RecordConfig controls writing annotated frames to a file
type RecordConfig struct {
	Path  string `yaml:"path"` // empty disables recording
	Codec string `yaml:"codec"`
}

// Config holds every runtime setting. Build it once at startup and pass
// values down; nothing reads it after the pipeline starts.
type Config struct {
	// Source is a device index ("0") or a file path / stream URL
	Source string `yaml:"source"`

	LogLevel    string `yaml:"log_level"`
	Headless    bool   `yaml:"headless"`
	WindowTitle string `yaml:"window_title"`

	// VehicleClasses are the detector class ids counted as traffic
	VehicleClasses []int `yaml:"vehicle_classes"`

	Detector detection.Config `yaml:"detector"`
	Policy   signal.Policy    `yaml:"policy"`
	Record   RecordConfig     `yaml:"record"`
	Web      web.Config       `yaml:"web"`
}

// DefaultConfig returns defaults for webcam 0 with a COCO YOLO model
func DefaultConfig() Config {
	return Config{
		Source:         "0",
		LogLevel:       "info",
		WindowTitle:    render.DefaultTitle,
		VehicleClasses: lane.DefaultVehicleClasses().IDs(),
		Detector:       detection.DefaultConfig(),
		Policy:         signal.DefaultPolicy(),
		Record:         RecordConfig{Codec: video.DefaultCodec},
		Web:            web.DefaultConfig(),
	}
}

// Load reads path over the defaults. A missing file is not an error and
// yields DefaultConfig(); an empty path does the same.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables when they are set
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvSource); v != "" {
		c.Source = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate collects every problem into one ErrInvalid error
func (c Config) Validate() error {
	var problems []string
	if len(c.VehicleClasses) == 0 {
		problems = append(problems, "vehicle_classes must not be empty")
	}
	for _, id := range c.VehicleClasses {
		if id < 0 || id >= c.Detector.NumClasses {
			problems = append(problems, fmt.Sprintf("vehicle class %d outside model range [0, %d)", id, c.Detector.NumClasses))
		}
	}
	problems = append(problems, c.Detector.Validate()...)
	problems = append(problems, c.Policy.Validate()...)
	if c.Web.Port != "" {
		problems = append(problems, c.Web.Validate()...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Classes returns the vehicle class set
func (c Config) Classes() lane.VehicleClasses {
	return lane.NewVehicleClasses(c.VehicleClasses...)
}

// SourceSpec parses Source
func (c Config) SourceSpec() video.SourceSpec {
	return video.ParseSource(c.Source)
}
