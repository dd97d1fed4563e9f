package video

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DefaultCodec is the fourcc used when none is configured
const DefaultCodec = "mp4v"

// Recorder writes annotated frames to a video file.
// The writer is created lazily on the first frame so the output size
// always matches what the pipeline produces.
type Recorder struct {
	path   string
	codec  string
	fps    float64
	writer *gocv.VideoWriter
	size   image.Point
	frames int
}

// NewRecorder prepares a recorder. fps <= 0 falls back to 30.
func NewRecorder(path, codec string, fps float64) *Recorder {
	if codec == "" {
		codec = DefaultCodec
	}
	if fps <= 0 {
		fps = 30
	}
	return &Recorder{path: path, codec: codec, fps: fps}
}

// Path returns the output file
func (r *Recorder) Path() string {
	return r.path
}

// Frames returns how many frames were written
func (r *Recorder) Frames() int {
	return r.frames
}

// Write appends frame to the output, opening the file on first use.
// Frames whose size differs from the first frame are resized.
func (r *Recorder) Write(frame gocv.Mat) error {
	if frame.Empty() {
		return nil
	}

	if r.writer == nil {
		r.size = image.Pt(frame.Cols(), frame.Rows())
		w, err := gocv.VideoWriterFile(r.path, r.codec, r.fps, r.size.X, r.size.Y, true)
		if err != nil {
			return fmt.Errorf("open video writer %s: %w", r.path, err)
		}
		r.writer = w
	}

	if frame.Cols() != r.size.X || frame.Rows() != r.size.Y {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(frame, &scaled, r.size, 0, 0, gocv.InterpolationLinear)
		frame = scaled
	}

	if err := r.writer.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	r.frames++
	return nil
}

// Close finalizes the output file
func (r *Recorder) Close() error {
	if r.writer == nil {
		return nil
	}
	err := r.writer.Close()
	r.writer = nil
	return err
}
