// Package video opens camera and file sources and records annotated output.
package video

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// ErrSourceUnavailable is returned when a camera or file cannot be opened.
var ErrSourceUnavailable = errors.New("video: cannot open video source")

// SourceSpec identifies a capture device or a file/stream location
type SourceSpec struct {
	Device int    // used when Path is empty
	Path   string // file path or stream URL
}

// ParseSource treats an integer string as a device index and anything else
// as a path. An empty string selects device 0.
func ParseSource(s string) SourceSpec {
	s = strings.TrimSpace(s)
	if s == "" {
		return SourceSpec{Device: 0}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return SourceSpec{Device: n}
	}
	return SourceSpec{Path: s}
}

// IsDevice reports whether the spec selects a capture device
func (s SourceSpec) IsDevice() bool {
	return s.Path == ""
}

func (s SourceSpec) String() string {
	if s.IsDevice() {
		return fmt.Sprintf("device:%d", s.Device)
	}
	return s.Path
}

func (s SourceSpec) target() interface{} {
	if s.IsDevice() {
		return s.Device
	}
	return s.Path
}

// Info describes the opened stream
type Info struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"` // 0 or negative for live devices
}

// Source reads frames from an opened capture
type Source struct {
	spec    SourceSpec
	capture *gocv.VideoCapture
	info    Info
}

// Open opens spec and reads its stream properties
func Open(spec SourceSpec) (*Source, error) {
	capture, err := gocv.OpenVideoCapture(spec.target())
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrSourceUnavailable, spec, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w %s", ErrSourceUnavailable, spec)
	}

	info := Info{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}

	return &Source{spec: spec, capture: capture, info: info}, nil
}

// Spec returns what was opened
func (s *Source) Spec() SourceSpec {
	return s.spec
}

// Info returns the stream properties reported at open time
func (s *Source) Info() Info {
	return s.info
}

// Read grabs the next frame into dst. It returns false when the stream
// has ended or the device stopped delivering frames.
func (s *Source) Read(dst *gocv.Mat) bool {
	return s.capture.Read(dst)
}

// Close releases the capture
func (s *Source) Close() error {
	return s.capture.Close()
}
