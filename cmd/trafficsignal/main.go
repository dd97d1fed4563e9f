// Traffic density signal advisor.
//
// Reads a camera or video file, counts vehicles on each side of the frame
// with a YOLO model and overlays which lane should get the green light.
// Press ESC in the window or Ctrl+C to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/teslashibe/go-trafficlight/internal/config"
	"github.com/teslashibe/go-trafficlight/internal/log"
	"github.com/teslashibe/go-trafficlight/pkg/detection"
	"github.com/teslashibe/go-trafficlight/pkg/pipeline"
	"github.com/teslashibe/go-trafficlight/pkg/render"
	"github.com/teslashibe/go-trafficlight/pkg/video"
	"github.com/teslashibe/go-trafficlight/pkg/web"
	"gocv.io/x/gocv"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		return 1
	}
	log.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("configuration rejected", "error", err)
		return 1
	}

	det, err := detection.New(cfg.Detector)
	if err != nil {
		log.Error("load detector", "error", err)
		return 1
	}
	defer det.Close()

	src, err := video.Open(cfg.SourceSpec())
	if err != nil {
		fmt.Println("❌ Error: Cannot open video source")
		log.Error("open source", "source", cfg.Source, "error", err)
		return 1
	}
	defer src.Close()

	info := src.Info()
	log.Info("source opened", "source", src.Spec().String(), "width", info.Width, "height", info.Height, "fps", info.FPS)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := []pipeline.Option{
		pipeline.WithPolicy(cfg.Policy),
		pipeline.WithVehicleClasses(cfg.Classes()),
	}

	if !cfg.Headless {
		window := render.NewWindow(cfg.WindowTitle)
		defer window.Close()
		opts = append(opts, pipeline.WithDisplay(window))
	}

	if cfg.Record.Path != "" {
		rec := video.NewRecorder(cfg.Record.Path, cfg.Record.Codec, info.FPS)
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn("close recording", "path", rec.Path(), "error", err)
			}
			log.Info("recording saved", "path", rec.Path(), "frames", rec.Frames())
		}()
		opts = append(opts, pipeline.WithObserver(pipeline.ObserverFunc(
			func(_ pipeline.Result, frame gocv.Mat) error { return rec.Write(frame) })))
	}

	if cfg.Web.Port != "" {
		dash := web.NewServer(cfg.Web, web.NewPolicyView(cfg.Policy, cfg.Classes()))
		dash.StartAsync(ctx)
		defer dash.Shutdown()
		opts = append(opts, pipeline.WithObserver(dash))
	}

	p := pipeline.New(src, det, opts...)

	fmt.Println("✅ Traffic Density Control System Started")
	log.Info("running", "run_id", p.RunID(), "backend", cfg.Detector.Backend, "model", cfg.Detector.ModelPath)

	runErr := p.Run(ctx)

	fmt.Println("🛑 System Stopped")
	if runErr != nil {
		log.Error("pipeline failed", "frames", p.Frames(), "error", runErr)
		return 1
	}
	log.Info("pipeline finished", "frames", p.Frames())
	return 0
}

// parseFlags loads the config file and applies environment and flag overrides.
// Only flags given in args override file values.
func parseFlags(fs *flag.FlagSet, args []string) (config.Config, error) {
	configPath := fs.String("config", "trafficsignal.yaml", "YAML config file (missing file uses defaults)")
	source := fs.String("source", "", "Camera index or video file/URL (overrides TRAFFIC_SOURCE)")
	model := fs.String("model", "", "Path to YOLO ONNX model")
	backend := fs.String("backend", "", "Detector backend: opencv, onnxruntime")
	conf := fs.Float64("conf", 0, "Detection confidence threshold")
	ortLib := fs.String("ort-lib", "", "Path to libonnxruntime shared library")
	record := fs.String("record", "", "Write annotated video to this file")
	codec := fs.String("codec", "", "FourCC codec for -record (default mp4v)")
	webPort := fs.String("web", "", "Serve the dashboard on this port")
	headless := fs.Bool("headless", false, "Do not open a display window")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	debug := fs.Bool("debug", false, "Shorthand for -log-level=debug")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["source"] {
		cfg.Source = *source
	}
	if set["model"] {
		cfg.Detector.ModelPath = *model
	}
	if set["backend"] {
		cfg.Detector.Backend = *backend
	}
	if set["conf"] {
		cfg.Detector.ConfidenceThresh = float32(*conf)
	}
	if set["ort-lib"] {
		cfg.Detector.LibraryPath = *ortLib
	}
	if set["record"] {
		cfg.Record.Path = *record
	}
	if set["codec"] {
		cfg.Record.Codec = *codec
	}
	if set["web"] {
		cfg.Web.Port = *webPort
	}
	if set["headless"] {
		cfg.Headless = *headless
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
