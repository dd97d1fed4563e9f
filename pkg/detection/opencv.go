package detection

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-trafficlight/internal/log"
	"gocv.io/x/gocv"
)

// OpenCVDetector runs a YOLO ONNX export through OpenCV's DNN module
type OpenCVDetector struct {
	net       gocv.Net
	config    Config
	mu        sync.Mutex
	inputSize image.Point
}

// NewOpenCV loads the model with the default DNN backend on CPU
func NewOpenCV(cfg Config) (*OpenCVDetector, error) {
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	log.Info("detector loaded", "backend", BackendOpenCV, "model", cfg.ModelPath)

	return &OpenCVDetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds objects in the frame
func (d *OpenCVDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	frameW := float32(frame.Cols())
	frameH := float32(frame.Rows())

	blob := gocv.BlobFromImage(frame, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// Output shape: [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	numClasses, anchors := dims[1]-4, dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	cands, err := decodeHead(data, numClasses, anchors,
		frameW/float32(d.config.InputWidth), frameH/float32(d.config.InputHeight),
		d.config.ConfidenceThresh)
	if err != nil {
		return nil, err
	}

	detections := suppress(cands, d.config.ConfidenceThresh, d.config.NMSThresh)
	log.Debug("yolo pass", "candidates", cands.len(), "detections", len(detections))
	return detections, nil
}

// Close releases the network
func (d *OpenCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
