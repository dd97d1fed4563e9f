// Package web serves a live dashboard of signal decisions
package web

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-trafficlight/internal/log"
	"github.com/teslashibe/go-trafficlight/pkg/hub"
	"github.com/teslashibe/go-trafficlight/pkg/lane"
	"github.com/teslashibe/go-trafficlight/pkg/object"
	"github.com/teslashibe/go-trafficlight/pkg/pipeline"
	"github.com/teslashibe/go-trafficlight/pkg/signal"
	"gocv.io/x/gocv"
)

// historySize is how many results /api/decisions keeps
const historySize = 500

// Config holds dashboard settings
type Config struct {
	Port           string `yaml:"port" json:"port"`                       // empty disables the dashboard
	ThumbnailWidth int    `yaml:"thumbnail_width" json:"thumbnail_width"` // camera frames are scaled to this width
	JPEGQuality    int    `yaml:"jpeg_quality" json:"jpeg_quality"`
	CameraEvery    int    `yaml:"camera_every" json:"camera_every"` // send every Nth frame to camera clients
}

// DefaultConfig returns a disabled dashboard with sensible camera settings
func DefaultConfig() Config {
	return Config{
		Port:           "",
		ThumbnailWidth: 640,
		JPEGQuality:    75,
		CameraEvery:    2,
	}
}

// Validate checks value ranges.
// Returns a list of validation errors, or nil if valid.
func (c Config) Validate() []string {
	var errors []string
	if c.ThumbnailWidth < 64 {
		errors = append(errors, "web.thumbnail_width must be at least 64")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errors = append(errors, "web.jpeg_quality must be between 1 and 100")
	}
	if c.CameraEvery < 1 {
		errors = append(errors, "web.camera_every must be at least 1")
	}
	return errors
}

// PolicyView is the active configuration as served by /api/policy
type PolicyView struct {
	VehicleClasses    []int    `json:"vehicle_classes"`
	VehicleClassNames []string `json:"vehicle_class_names"`
	MediumThreshold   int      `json:"medium_threshold"`
	HighThreshold     int      `json:"high_threshold"`
	LowGreenSec       int      `json:"low_green_sec"`
	MediumGreenSec    int      `json:"medium_green_sec"`
	HighGreenSec      int      `json:"high_green_sec"`
}

// NewPolicyView flattens a policy and class set for clients
func NewPolicyView(p signal.Policy, classes lane.VehicleClasses) PolicyView {
	ids := classes.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = object.ClassName(id)
	}
	return PolicyView{
		VehicleClasses:    ids,
		VehicleClassNames: names,
		MediumThreshold:   p.MediumThreshold,
		HighThreshold:     p.HighThreshold,
		LowGreenSec:       int(p.LowGreen / time.Second),
		MediumGreenSec:    int(p.MediumGreen / time.Second),
		HighGreenSec:      int(p.HighGreen / time.Second),
	}
}

// Server is the dashboard server
type Server struct {
	app    *fiber.App
	config Config
	policy PolicyView
	start  time.Time

	mu      sync.RWMutex
	latest  *pipeline.Result
	history []pipeline.Result
	frames  int64

	statusHub *hub.Hub
	cameraHub *hub.Hub

	cancel context.CancelFunc
}

// NewServer creates a dashboard server. Call Start to listen.
func NewServer(cfg Config, policy PolicyView) *Server {
	s := &Server{
		config:    cfg,
		policy:    policy,
		start:     time.Now(),
		history:   make([]pipeline.Result, 0, historySize),
		statusHub: hub.New("status"),
		cameraHub: hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Traffic Signal Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Get("/decisions", s.handleDecisions)
	api.Get("/policy", s.handlePolicy)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the fiber app for tests and embedding
func (s *Server) App() *fiber.App {
	return s.app
}

// StartHubs runs the websocket hubs until ctx is done or Shutdown is called
func (s *Server) StartHubs(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
}

// Start runs the hubs and blocks serving on the configured port
func (s *Server) Start(ctx context.Context) error {
	s.StartHubs(ctx)
	return s.listen()
}

// StartAsync starts the hubs and serves in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	s.StartHubs(ctx)
	go func() {
		if err := s.listen(); err != nil {
			log.Warn("dashboard stopped", "error", err)
		}
	}()
}

func (s *Server) listen() error {
	log.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%s", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops the hubs and the HTTP server
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.app.Shutdown()
}

// Observe records res and pushes it to subscribers. It never fails the pipeline.
func (s *Server) Observe(res pipeline.Result, frame gocv.Mat) error {
	s.mu.Lock()
	s.latest = &res
	s.frames++
	s.history = append(s.history, res)
	if len(s.history) > historySize {
		s.history = s.history[1:]
	}
	s.mu.Unlock()

	if err := s.statusHub.BroadcastJSON(res); err != nil {
		log.Warn("encode status", "error", err)
	}

	if s.cameraHub.ClientCount() > 0 && res.Sequence%int64(s.config.CameraEvery) == 0 {
		jpeg, err := s.thumbnail(frame)
		if err != nil {
			log.Warn("encode camera frame", "error", err)
			return nil
		}
		s.cameraHub.BroadcastBinary(jpeg)
	}
	return nil
}

// thumbnail scales frame down to the configured width and encodes it as JPEG
func (s *Server) thumbnail(frame gocv.Mat) ([]byte, error) {
	img, err := frame.ToImage()
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > s.config.ThumbnailWidth {
		img = imaging.Resize(img, s.config.ThumbnailWidth, 0, imaging.Linear)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.config.JPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
