package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// StreamHandler pushes record status over a WebSocket until the record
// reaches a terminal state
type StreamHandler struct {
	service      TranscriptService
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(service TranscriptService, pollInterval time.Duration, logger *slog.Logger) *StreamHandler {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		service:      service,
		pollInterval: pollInterval,
		logger:       logger.With("component", "stream"),
	}
}

// Register mounts GET /ws/status/:id
func (h *StreamHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws/status/:id", websocket.New(h.Handle))
}

// StatusFrame is one message on the status stream
type StatusFrame struct {
	ID      string  `json:"id"`
	Status  string  `json:"status"`
	Title   string  `json:"title,omitempty"`
	Summary *string `json:"summary,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Handle streams status frames for the record named in the path
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	id := c.Params("id")
	logger := h.logger.With("id", id)
	logger.Debug("status stream opened")

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	last := ""
	for {
		rec, err := h.service.Get(context.Background(), id)
		if err != nil {
			msg := "failed to load record"
			if errors.Is(err, types.ErrNotFound) {
				msg = "Record not found"
			}
			_ = c.WriteJSON(StatusFrame{ID: id, Status: "error", Error: msg})
			return
		}

		if rec.Status != last {
			if err := c.WriteJSON(newStatusFrame(rec)); err != nil {
				logger.Debug("status stream write failed", "error", err)
				return
			}
			last = rec.Status
		}
		if rec.IsTerminal() {
			return
		}

		select {
		case <-h.service.Watch(id):
		case <-ticker.C:
		case <-gone:
			return
		}
	}
}

func newStatusFrame(t *types.Transcript) StatusFrame {
	return StatusFrame{
		ID:      t.ID,
		Status:  t.Status,
		Title:   t.Title,
		Summary: t.Summary,
		Error:   t.Error,
	}
}
