package detection

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-trafficlight/pkg/object"
	"gocv.io/x/gocv"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelPath == "" {
		t.Error("DefaultConfig: ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh != 0.4 {
		t.Errorf("DefaultConfig: ConfidenceThresh = %v, want 0.4", cfg.ConfidenceThresh)
	}
	if cfg.NumClasses != 80 {
		t.Errorf("DefaultConfig: NumClasses = %d, want 80", cfg.NumClasses)
	}
	if problems := cfg.Validate(); len(problems) != 0 {
		t.Errorf("DefaultConfig should be valid, got %v", problems)
	}
	if got := cfg.Anchors(); got != 8400 {
		t.Errorf("Anchors for 640x640 = %d, want 8400", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "tensorrt" }},
		{"missing model", func(c *Config) { c.ModelPath = "" }},
		{"zero confidence", func(c *Config) { c.ConfidenceThresh = 0 }},
		{"nms above one", func(c *Config) { c.NMSThresh = 1.5 }},
		{"width not multiple of 32", func(c *Config) { c.InputWidth = 500 }},
		{"zero height", func(c *Config) { c.InputHeight = 0 }},
		{"no classes", func(c *Config) { c.NumClasses = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if problems := cfg.Validate(); len(problems) != 1 {
				t.Errorf("expected exactly one problem, got %v", problems)
			}
		})
	}
}

func TestNew_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	_, err := New(cfg)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.ModelPath = path
	cfg.Backend = "tensorrt"

	_, err := New(cfg)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

// headBuilder lays out a synthetic [4+classes][anchors] tensor
type headBuilder struct {
	classes, anchors int
	data             []float32
}

func newHead(classes, anchors int) *headBuilder {
	return &headBuilder{classes: classes, anchors: anchors, data: make([]float32, (4+classes)*anchors)}
}

func (h *headBuilder) set(anchor int, cx, cy, w, hgt float32, class int, score float32) {
	h.data[0*h.anchors+anchor] = cx
	h.data[1*h.anchors+anchor] = cy
	h.data[2*h.anchors+anchor] = w
	h.data[3*h.anchors+anchor] = hgt
	h.data[(4+class)*h.anchors+anchor] = score
}

func TestDecodeHead(t *testing.T) {
	h := newHead(8, 4)
	h.set(0, 100, 100, 40, 20, object.ClassCar, 0.9)
	h.set(1, 300, 200, 60, 60, object.ClassTruck, 0.3) // below threshold
	h.set(2, 320, 320, 64, 64, object.ClassBus, 0.4)   // exactly at threshold

	// Frame is 1280x640 for a 640x640 model input
	cands, err := decodeHead(h.data, 8, 4, 2, 1, 0.4)
	if err != nil {
		t.Fatalf("decodeHead: %v", err)
	}

	if cands.len() != 2 {
		t.Fatalf("expected 2 candidates, got %d", cands.len())
	}

	wantCar := image.Rect(160, 90, 240, 110)
	if cands.boxes[0] != wantCar {
		t.Errorf("car box = %v, want %v", cands.boxes[0], wantCar)
	}
	if cands.classIDs[0] != object.ClassCar {
		t.Errorf("car class = %d, want %d", cands.classIDs[0], object.ClassCar)
	}
	if math.Abs(float64(cands.scores[0]-0.9)) > 1e-6 {
		t.Errorf("car score = %v, want 0.9", cands.scores[0])
	}
	if cands.classIDs[1] != object.ClassBus {
		t.Errorf("second candidate class = %d, want %d", cands.classIDs[1], object.ClassBus)
	}
}

func TestDecodeHead_ShortBuffer(t *testing.T) {
	_, err := decodeHead(make([]float32, 10), 80, 8400, 1, 1, 0.4)
	if err == nil {
		t.Error("expected error for undersized output buffer")
	}
}

func TestSuppress(t *testing.T) {
	t.Run("overlapping boxes of one class collapse", func(t *testing.T) {
		c := &candidates{
			boxes:    []image.Rectangle{image.Rect(0, 0, 100, 100), image.Rect(5, 5, 105, 105)},
			scores:   []float32{0.6, 0.9},
			classIDs: []int{object.ClassCar, object.ClassCar},
		}
		dets := suppress(c, 0.4, 0.45)
		if len(dets) != 1 {
			t.Fatalf("expected 1 detection, got %d", len(dets))
		}
		if dets[0].Confidence != 0.9 {
			t.Errorf("kept confidence = %v, want 0.9", dets[0].Confidence)
		}
		if dets[0].ClassName != "car" {
			t.Errorf("class name = %q, want car", dets[0].ClassName)
		}
	})

	t.Run("overlapping boxes of different classes both survive", func(t *testing.T) {
		c := &candidates{
			boxes:    []image.Rectangle{image.Rect(0, 0, 100, 100), image.Rect(5, 5, 105, 105)},
			scores:   []float32{0.6, 0.9},
			classIDs: []int{object.ClassCar, object.ClassTruck},
		}
		if dets := suppress(c, 0.4, 0.45); len(dets) != 2 {
			t.Errorf("expected 2 detections, got %d", len(dets))
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if dets := suppress(&candidates{}, 0.4, 0.45); dets != nil {
			t.Errorf("expected nil, got %v", dets)
		}
	})
}

func TestFillInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	dst := make([]float32, 3*32*32)
	if err := fillInput(dst, img, 32, 32); err != nil {
		t.Fatalf("fillInput: %v", err)
	}

	plane := 32 * 32
	if dst[0] != 1.0 || dst[plane-1] != 1.0 {
		t.Errorf("red plane should be 1.0, got %v / %v", dst[0], dst[plane-1])
	}
	if dst[plane] != 0 || dst[2*plane] != 0 {
		t.Errorf("green/blue planes should be 0, got %v / %v", dst[plane], dst[2*plane])
	}

	if err := fillInput(make([]float32, 10), img, 32, 32); err == nil {
		t.Error("expected error for undersized tensor")
	}
}

// findModelPath locates a YOLO export for integration runs
func findModelPath() string {
	candidates := []string{
		"models/yolo11n.onnx",
		"../../models/yolo11n.onnx",
		"models/yolov8n.onnx",
		"../../models/yolov8n.onnx",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func TestOpenCVDetector_BlankFrame(t *testing.T) {
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YOLO model not found, skipping test")
	}

	cfg := DefaultConfig()
	cfg.ModelPath = modelPath

	det, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer det.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	dets, err := det.Detect(frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("expected no detections on a black frame, got %d", len(dets))
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := det.Detect(empty); err == nil {
		t.Error("expected error for empty frame")
	}
}
