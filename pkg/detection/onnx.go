package detection

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/nfnt/resize"
	"github.com/teslashibe/go-trafficlight/internal/log"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// initRuntime loads libonnxruntime once per process
func initRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return ortErr
}

// modelSession bundles a session with its bound tensors
type modelSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (m *modelSession) destroy() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}

// ONNXDetector runs a YOLO export through ONNX Runtime
type ONNXDetector struct {
	ms      *modelSession
	config  Config
	anchors int
	mu      sync.Mutex
}

// NewONNX creates an ONNX Runtime session bound to fixed input/output tensors
func NewONNX(cfg Config) (*ONNXDetector, error) {
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, err
	}

	anchors := cfg.Anchors()
	ms := &modelSession{}

	inputShape := ort.NewShape(1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	ms.input = input

	outputShape := ort.NewShape(1, int64(4+cfg.NumClasses), int64(anchors))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		ms.destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	ms.output = output

	options, err := ort.NewSessionOptions()
	if err != nil {
		ms.destroy()
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options)
	if err != nil {
		ms.destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}
	ms.session = session

	log.Info("detector loaded", "backend", BackendONNXRuntime, "model", cfg.ModelPath, "anchors", anchors)

	return &ONNXDetector{ms: ms, config: cfg, anchors: anchors}, nil
}

// Detect finds objects in the frame
func (d *ONNXDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	frameW := float32(img.Bounds().Dx())
	frameH := float32(img.Bounds().Dy())

	if err := fillInput(d.ms.input.GetData(), img, d.config.InputWidth, d.config.InputHeight); err != nil {
		return nil, err
	}

	if err := d.ms.session.Run(); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}

	cands, err := decodeHead(d.ms.output.GetData(), d.config.NumClasses, d.anchors,
		frameW/float32(d.config.InputWidth), frameH/float32(d.config.InputHeight),
		d.config.ConfidenceThresh)
	if err != nil {
		return nil, err
	}

	detections := suppress(cands, d.config.ConfidenceThresh, d.config.NMSThresh)
	log.Debug("yolo pass", "candidates", cands.len(), "detections", len(detections))
	return detections, nil
}

// Close destroys the session and its tensors
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ms.destroy()
	return nil
}

// fillInput resizes img to width x height and writes it into dst as
// planar RGB scaled to [0, 1].
func fillInput(dst []float32, img image.Image, width, height int) error {
	channelSize := width * height
	if len(dst) < channelSize*3 {
		return fmt.Errorf("input tensor holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	scaled := resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	b := scaled.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Min.Y+height; y++ {
		for x := b.Min.X; x < b.Min.X+width; x++ {
			r, g, bl, _ := scaled.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}
