package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trafficsignal.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should be valid: %v", err)
	}
	if !reflect.DeepEqual(cfg.VehicleClasses, []int{2, 3, 5, 7}) {
		t.Errorf("VehicleClasses = %v, want [2 3 5 7]", cfg.VehicleClasses)
	}
	if cfg.Detector.ConfidenceThresh != 0.4 {
		t.Errorf("ConfidenceThresh = %v, want 0.4", cfg.Detector.ConfidenceThresh)
	}
	if !cfg.SourceSpec().IsDevice() {
		t.Error("default source should be a capture device")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	cfg, err = Load("")
	if err != nil || !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("empty path should give defaults, got %+v, %v", cfg, err)
	}
}

func TestLoad_OverridesOnlyGivenFields(t *testing.T) {
	path := writeConfig(t, `
source: traffic.mp4
headless: true
vehicle_classes: [2, 7]
detector:
  backend: onnxruntime
  confidence: 0.55
policy:
  medium_threshold: 4
  high_green: 45s
record:
  path: out.mp4
web:
  port: "8080"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Source != "traffic.mp4" || cfg.SourceSpec().IsDevice() {
		t.Errorf("Source = %q", cfg.Source)
	}
	if !cfg.Headless {
		t.Error("Headless should be true")
	}
	if !reflect.DeepEqual(cfg.VehicleClasses, []int{2, 7}) {
		t.Errorf("VehicleClasses = %v", cfg.VehicleClasses)
	}
	if cfg.Detector.Backend != "onnxruntime" || cfg.Detector.ConfidenceThresh != 0.55 {
		t.Errorf("Detector = %+v", cfg.Detector)
	}
	if cfg.Detector.ModelPath != DefaultConfig().Detector.ModelPath {
		t.Errorf("ModelPath should keep its default, got %q", cfg.Detector.ModelPath)
	}
	if cfg.Policy.MediumThreshold != 4 || cfg.Policy.HighThreshold != 10 {
		t.Errorf("Policy thresholds = %d/%d", cfg.Policy.MediumThreshold, cfg.Policy.HighThreshold)
	}
	if cfg.Policy.HighGreen != 45*time.Second || cfg.Policy.LowGreen != 10*time.Second {
		t.Errorf("Policy durations = %v/%v", cfg.Policy.LowGreen, cfg.Policy.HighGreen)
	}
	if cfg.Record.Path != "out.mp4" || cfg.Record.Codec != "mp4v" {
		t.Errorf("Record = %+v", cfg.Record)
	}
	if cfg.Web.Port != "8080" || cfg.Web.JPEGQuality != 75 {
		t.Errorf("Web = %+v", cfg.Web)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}

	classes := cfg.Classes()
	if !classes.Contains(7) || classes.Contains(3) {
		t.Errorf("Classes() = %v", classes.IDs())
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "policy: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvSource, "rtsp://cam.local/1")
	t.Setenv(EnvLogLevel, "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Source != "rtsp://cam.local/1" {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		expect string
	}{
		{"no vehicle classes", func(c *Config) { c.VehicleClasses = nil }, "vehicle_classes"},
		{"class outside model", func(c *Config) { c.VehicleClasses = []int{2, 80} }, "vehicle class 80"},
		{"bad confidence", func(c *Config) { c.Detector.ConfidenceThresh = 2 }, "detector.confidence"},
		{"unordered policy", func(c *Config) { c.Policy.HighThreshold = 1 }, "high_threshold"},
		{"bad web quality when enabled", func(c *Config) { c.Web.Port = "8080"; c.Web.JPEGQuality = 0 }, "jpeg_quality"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.expect) {
				t.Errorf("error %q should mention %q", err, tc.expect)
			}
		})
	}

	// Web settings are ignored while the dashboard is off
	cfg := DefaultConfig()
	cfg.Web.JPEGQuality = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled dashboard should not be validated: %v", err)
	}
}
