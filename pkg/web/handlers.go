package web

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-trafficlight/internal/log"
	"github.com/teslashibe/go-trafficlight/pkg/hub"
	"github.com/teslashibe/go-trafficlight/pkg/pipeline"
)

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Frames        int64            `json:"frames"`
	UptimeSec     float64          `json:"uptime_sec"`
	StatusClients int              `json:"status_clients"`
	CameraClients int              `json:"camera_clients"`
	Latest        *pipeline.Result `json:"latest"`
}

// handleHealth is a liveness probe
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the latest frame result and counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	resp := StatusResponse{
		Frames:        s.frames,
		UptimeSec:     time.Since(s.start).Seconds(),
		StatusClients: s.statusHub.ClientCount(),
		CameraClients: s.cameraHub.ClientCount(),
		Latest:        s.latest,
	}
	s.mu.RUnlock()
	return c.JSON(resp)
}

// handleDecisions returns recent results, newest last.
// ?limit=N trims to the last N entries.
func (s *Server) handleDecisions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", historySize)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must not be negative",
		})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	from := 0
	if limit < len(s.history) {
		from = len(s.history) - limit
	}
	out := make([]pipeline.Result, len(s.history)-from)
	copy(out, s.history[from:])
	return c.JSON(out)
}

// handlePolicy returns the active policy and vehicle classes
func (s *Server) handlePolicy(c *fiber.Ctx) error {
	return c.JSON(s.policy)
}

// handleStatusWS streams every frame result, starting with the latest one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	var greeting []hub.Message
	s.mu.RLock()
	if s.latest != nil {
		if data, err := json.Marshal(s.latest); err == nil {
			greeting = append(greeting, hub.Message{Type: hub.JSONMessage, Data: data})
		} else {
			log.Warn("encode status greeting", "error", err)
		}
	}
	s.mu.RUnlock()

	hub.Serve(s.statusHub, c, greeting...)
}

// handleCameraWS streams annotated JPEG thumbnails
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.Serve(s.cameraHub, c)
}
