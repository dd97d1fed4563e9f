// Package detection runs YOLO object detection on video frames.
package detection

import (
	"errors"
	"fmt"
	"os"

	"github.com/teslashibe/go-trafficlight/pkg/object"
	"gocv.io/x/gocv"
)

// Backend names accepted by New.
const (
	BackendOpenCV      = "opencv"
	BackendONNXRuntime = "onnxruntime"
)

var (
	ErrUnknownBackend = errors.New("detection: unknown backend")
	ErrModelNotFound  = errors.New("detection: model file not found")
)

// Detection is one object found in a frame
type Detection = object.Detection

// Detector is the interface for object detection backends
type Detector interface {
	// Detect finds objects in a BGR frame
	Detect(frame gocv.Mat) ([]Detection, error)

	// Close releases native resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	Backend          string  `yaml:"backend" json:"backend"`
	ModelPath        string  `yaml:"model_path" json:"model_path"`
	ConfidenceThresh float32 `yaml:"confidence" json:"confidence"`
	NMSThresh        float32 `yaml:"nms" json:"nms"`
	InputWidth       int     `yaml:"input_width" json:"input_width"`
	InputHeight      int     `yaml:"input_height" json:"input_height"`
	NumClasses       int     `yaml:"num_classes" json:"num_classes"`

	// LibraryPath points at libonnxruntime for the onnxruntime backend.
	// Empty uses the loader's default search path.
	LibraryPath string `yaml:"library_path" json:"library_path"`
}

// DefaultConfig returns defaults for a COCO-trained YOLO11n export
func DefaultConfig() Config {
	return Config{
		Backend:          BackendOpenCV,
		ModelPath:        "models/yolo11n.onnx",
		ConfidenceThresh: 0.4,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
		NumClasses:       len(object.COCOClasses),
	}
}

// Validate reports every invalid field.
func (c Config) Validate() []string {
	var problems []string
	if c.Backend != "" && c.Backend != BackendOpenCV && c.Backend != BackendONNXRuntime {
		problems = append(problems, fmt.Sprintf("detector.backend must be %s or %s", BackendOpenCV, BackendONNXRuntime))
	}
	if c.ModelPath == "" {
		problems = append(problems, "detector.model_path is required")
	}
	if c.ConfidenceThresh <= 0 || c.ConfidenceThresh > 1 {
		problems = append(problems, "detector.confidence must be in (0, 1]")
	}
	if c.NMSThresh <= 0 || c.NMSThresh > 1 {
		problems = append(problems, "detector.nms must be in (0, 1]")
	}
	if c.InputWidth <= 0 || c.InputWidth%32 != 0 {
		problems = append(problems, "detector.input_width must be a positive multiple of 32")
	}
	if c.InputHeight <= 0 || c.InputHeight%32 != 0 {
		problems = append(problems, "detector.input_height must be a positive multiple of 32")
	}
	if c.NumClasses <= 0 {
		problems = append(problems, "detector.num_classes must be positive")
	}
	return problems
}

// Anchors returns the number of predictions a YOLOv8-style head emits
// for the configured input size (strides 8, 16 and 32).
func (c Config) Anchors() int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		n += (c.InputWidth / stride) * (c.InputHeight / stride)
	}
	return n
}

// New creates the detector selected by cfg.Backend.
func New(cfg Config) (Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	switch cfg.Backend {
	case "", BackendOpenCV:
		return NewOpenCV(cfg)
	case BackendONNXRuntime:
		return NewONNX(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
