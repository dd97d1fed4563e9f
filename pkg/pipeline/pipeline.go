// Package pipeline runs the per-frame loop: read, detect, partition,
// decide, annotate, display.
//
// The loop is single-threaded and blocking. Each frame is evaluated on its
// own; nothing carries over between frames except the sequence counter.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-trafficlight/internal/log"
	"github.com/teslashibe/go-trafficlight/pkg/detection"
	"github.com/teslashibe/go-trafficlight/pkg/lane"
	"github.com/teslashibe/go-trafficlight/pkg/render"
	"github.com/teslashibe/go-trafficlight/pkg/signal"
	"gocv.io/x/gocv"
)

// FrameSource supplies frames. Read returns false when no more frames are available.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
}

// Display shows annotated frames. Show returns false when the operator asks to stop.
type Display interface {
	Show(frame gocv.Mat) bool
}

// Observer receives every evaluated frame after annotation.
// The frame is only valid for the duration of the call.
type Observer interface {
	Observe(res Result, frame gocv.Mat) error
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(res Result, frame gocv.Mat) error

// Observe calls f
func (f ObserverFunc) Observe(res Result, frame gocv.Mat) error {
	return f(res, frame)
}

// Result is what one frame produced
type Result struct {
	RunID            string            `json:"run_id"`
	Sequence         int64             `json:"sequence"`
	Width            int               `json:"width"`
	Height           int               `json:"height"`
	Detections       int               `json:"detections"`
	Vehicles         []lane.Assignment `json:"vehicles"`
	Decision         signal.Decision   `json:"decision"`
	InferenceLatency time.Duration     `json:"inference_latency"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Evaluate partitions dets for a frame of the given width and decides the signal
func Evaluate(classes lane.VehicleClasses, policy signal.Policy, width int, dets []detection.Detection) ([]lane.Assignment, signal.Decision) {
	assignments, counts := lane.Partition(classes, width, dets)
	return assignments, policy.Decide(counts)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithPolicy sets the timing policy
func WithPolicy(p signal.Policy) Option {
	return func(pl *Pipeline) { pl.policy = p }
}

// WithVehicleClasses sets which detector classes are counted
func WithVehicleClasses(v lane.VehicleClasses) Option {
	return func(pl *Pipeline) { pl.classes = v }
}

// WithDisplay shows every annotated frame on d
func WithDisplay(d Display) Option {
	return func(pl *Pipeline) { pl.display = d }
}

// WithObserver appends an observer
func WithObserver(o Observer) Option {
	return func(pl *Pipeline) { pl.observers = append(pl.observers, o) }
}

// WithRunID overrides the generated run identifier
func WithRunID(id string) Option {
	return func(pl *Pipeline) { pl.runID = id }
}

// Pipeline wires a frame source and a detector to the lane/signal logic
type Pipeline struct {
	source    FrameSource
	detector  detection.Detector
	display   Display
	observers []Observer
	classes   lane.VehicleClasses
	policy    signal.Policy
	runID     string
	frames    int64
	logger    *slog.Logger
}

// New creates a pipeline with the default policy and vehicle classes
func New(src FrameSource, det detection.Detector, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   src,
		detector: det,
		classes:  lane.DefaultVehicleClasses(),
		policy:   signal.DefaultPolicy(),
		runID:    uuid.New().String(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.With("run_id", p.runID)
	return p
}

// RunID identifies this pipeline instance in logs and results
func (p *Pipeline) RunID() string {
	return p.runID
}

// Frames returns how many frames have been evaluated
func (p *Pipeline) Frames() int64 {
	return p.frames
}

// Policy returns the active policy
func (p *Pipeline) Policy() signal.Policy {
	return p.policy
}

// Run loops until the source ends, the display asks to stop, or ctx is done.
// Those cases return nil. A detector or observer failure ends the run with an error.
func (p *Pipeline) Run(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	p.logger.Info("pipeline started", "vehicle_classes", p.classes.IDs())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline cancelled", "frames", p.frames)
			return nil
		default:
		}

		if ok := p.source.Read(&frame); !ok {
			p.logger.Info("frame source ended", "frames", p.frames)
			return nil
		}
		if frame.Empty() {
			continue
		}

		if _, err := p.Step(&frame); err != nil {
			return err
		}

		if p.display != nil && !p.display.Show(frame) {
			p.logger.Info("stopped by operator", "frames", p.frames)
			return nil
		}
	}
}

// Step evaluates one frame, draws the overlay onto it and notifies observers
func (p *Pipeline) Step(frame *gocv.Mat) (Result, error) {
	start := time.Now()
	dets, err := p.detector.Detect(*frame)
	if err != nil {
		return Result{}, fmt.Errorf("detect frame %d: %w", p.frames+1, err)
	}
	latency := time.Since(start)

	width, height := frame.Cols(), frame.Rows()
	assignments, decision := Evaluate(p.classes, p.policy, width, dets)

	render.Annotate(frame, assignments, decision)

	p.frames++
	res := Result{
		RunID:            p.runID,
		Sequence:         p.frames,
		Width:            width,
		Height:           height,
		Detections:       len(dets),
		Vehicles:         assignments,
		Decision:         decision,
		InferenceLatency: latency,
		Timestamp:        time.Now(),
	}

	p.logger.Debug("frame evaluated",
		"seq", res.Sequence,
		"detections", res.Detections,
		"lane_1", decision.Counts.Lane1,
		"lane_2", decision.Counts.Lane2,
		"green", decision.GreenLane.String(),
		"green_sec", decision.Seconds(),
		"latency", latency)

	for _, o := range p.observers {
		if err := o.Observe(res, *frame); err != nil {
			return res, fmt.Errorf("observe frame %d: %w", res.Sequence, err)
		}
	}

	return res, nil
}
