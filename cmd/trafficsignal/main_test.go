package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
)

const testConfig = `source: traffic.mp4
log_level: warn
headless: true
detector:
  model_path: models/custom.onnx
  confidence: 0.5
web:
  port: "9000"
`

func TestParseFlags_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trafficsignal.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		env          map[string]string
		args         []string
		wantSource   string
		wantLevel    string
		wantModel    string
		wantConf     float32
		wantHeadless bool
		wantPort     string
	}{
		{
			name:         "file values when nothing overrides",
			wantSource:   "traffic.mp4",
			wantLevel:    "warn",
			wantModel:    "models/custom.onnx",
			wantConf:     0.5,
			wantHeadless: true,
			wantPort:     "9000",
		},
		{
			name:         "environment beats file",
			env:          map[string]string{"TRAFFIC_SOURCE": "2", "LOG_LEVEL": "error"},
			wantSource:   "2",
			wantLevel:    "error",
			wantModel:    "models/custom.onnx",
			wantConf:     0.5,
			wantHeadless: true,
			wantPort:     "9000",
		},
		{
			name:         "set flags beat environment",
			env:          map[string]string{"TRAFFIC_SOURCE": "2", "LOG_LEVEL": "error"},
			args:         []string{"-source", "cam.mp4", "-log-level", "info"},
			wantSource:   "cam.mp4",
			wantLevel:    "info",
			wantModel:    "models/custom.onnx",
			wantConf:     0.5,
			wantHeadless: true,
			wantPort:     "9000",
		},
		{
			name:         "explicit zero values still override",
			args:         []string{"-headless=false", "-web", "", "-model", "yolo.onnx", "-conf", "0.25"},
			wantSource:   "traffic.mp4",
			wantLevel:    "warn",
			wantModel:    "yolo.onnx",
			wantConf:     0.25,
			wantHeadless: false,
			wantPort:     "",
		},
		{
			name:         "debug beats log-level",
			args:         []string{"-log-level", "error", "-debug"},
			wantSource:   "traffic.mp4",
			wantLevel:    "debug",
			wantModel:    "models/custom.onnx",
			wantConf:     0.5,
			wantHeadless: true,
			wantPort:     "9000",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TRAFFIC_SOURCE", "")
			t.Setenv("LOG_LEVEL", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			fs := flag.NewFlagSet("trafficsignal", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			cfg, err := parseFlags(fs, append([]string{"-config", path}, tc.args...))
			if err != nil {
				t.Fatalf("parseFlags: %v", err)
			}

			if cfg.Source != tc.wantSource {
				t.Errorf("Source = %q, want %q", cfg.Source, tc.wantSource)
			}
			if cfg.LogLevel != tc.wantLevel {
				t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, tc.wantLevel)
			}
			if cfg.Detector.ModelPath != tc.wantModel {
				t.Errorf("ModelPath = %q, want %q", cfg.Detector.ModelPath, tc.wantModel)
			}
			if cfg.Detector.ConfidenceThresh != tc.wantConf {
				t.Errorf("ConfidenceThresh = %v, want %v", cfg.Detector.ConfidenceThresh, tc.wantConf)
			}
			if cfg.Headless != tc.wantHeadless {
				t.Errorf("Headless = %v, want %v", cfg.Headless, tc.wantHeadless)
			}
			if cfg.Web.Port != tc.wantPort {
				t.Errorf("Web.Port = %q, want %q", cfg.Web.Port, tc.wantPort)
			}
		})
	}
}

func TestParseFlags_MissingConfigUsesDefaults(t *testing.T) {
	t.Setenv("TRAFFIC_SOURCE", "")
	t.Setenv("LOG_LEVEL", "")

	fs := flag.NewFlagSet("trafficsignal", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := parseFlags(fs, []string{"-config", filepath.Join(t.TempDir(), "none.yaml")})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Source != "0" || cfg.LogLevel != "info" {
		t.Errorf("defaults not applied: source %q, log level %q", cfg.Source, cfg.LogLevel)
	}
}

func TestParseFlags_BadFlag(t *testing.T) {
	fs := flag.NewFlagSet("trafficsignal", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := parseFlags(fs, []string{"-no-such-flag"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}
