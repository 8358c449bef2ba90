package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// TranscriptService is what the HTTP layer needs from the service package
type TranscriptService interface {
	Process(ctx context.Context, url string, wait bool) (*types.Transcript, error)
	Get(ctx context.Context, id string) (*types.Transcript, error)
	List(ctx context.Context) ([]*types.Transcript, error)
	Watch(id string) <-chan struct{}
}

// TranscriptHandler serves the /api routes
type TranscriptHandler struct {
	service TranscriptService
}

// NewTranscriptHandler creates a new transcript handler
func NewTranscriptHandler(service TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{service: service}
}

// ProcessRequest represents the request body
type ProcessRequest struct {
	URL string `json:"url"`
}

// TranscriptResponse is returned by process and status
type TranscriptResponse struct {
	Status           string    `json:"status"`
	ID               string    `json:"id"`
	Transcript       string    `json:"transcript"`
	Summary          *string   `json:"summary"`
	CreatedAt        time.Time `json:"createdAt"`
	Title            string    `json:"title,omitempty"`
	Degraded         bool      `json:"degraded"`
	DegradedSegments []int     `json:"degradedSegments,omitempty"`
	ChunkCount       int       `json:"chunkCount,omitempty"`
	EstimatedTokens  int       `json:"estimatedTokens,omitempty"`
}

// ListItem is one entry of the list response
type ListItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Summary   *string   `json:"summary"`
	Title     string    `json:"title,omitempty"`
}

func newTranscriptResponse(t *types.Transcript) TranscriptResponse {
	return TranscriptResponse{
		Status:           t.Status,
		ID:               t.ID,
		Transcript:       t.Transcript,
		Summary:          t.Summary,
		CreatedAt:        t.CreatedAt,
		Title:            t.Title,
		Degraded:         t.Degraded,
		DegradedSegments: t.DegradedSegments,
		ChunkCount:       t.ChunkCount,
		EstimatedTokens:  t.EstimatedTokens,
	}
}

// Register mounts the /api routes on router
func (h *TranscriptHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	api.Post("/process", h.Process)
	api.Get("/status/:id", h.Status)
	api.Get("/list", h.List)
}

// Process handles POST /api/process. The response waits for the summary
// unless ?async=true is given. A record that has not finished is answered
// with 202.
func (h *TranscriptHandler) Process(c *fiber.Ctx) error {
	var req ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "Invalid request",
			Message: "request body must be JSON with a url field",
		})
	}

	wait := !c.QueryBool("async", false)
	rec, err := h.service.Process(c.UserContext(), req.URL, wait)
	if err != nil {
		return writeError(c, err)
	}

	status := fiber.StatusOK
	if !rec.IsTerminal() {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(newTranscriptResponse(rec))
}

// Status handles GET /api/status/:id
func (h *TranscriptHandler) Status(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newTranscriptResponse(rec))
}

// List handles GET /api/list
func (h *TranscriptHandler) List(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "Failed to fetch transcripts",
			Message: "internal error",
		})
	}

	items := make([]ListItem, 0, len(records))
	for _, r := range records {
		items = append(items, ListItem{
			ID:        r.ID,
			URL:       r.URL,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			Summary:   r.Summary,
			Title:     r.Title,
		})
	}
	return c.JSON(fiber.Map{"transcripts": items})
}

// Health handles GET /health
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// LogSource returns recent log lines
type LogSource interface {
	Lines() []string
}

// Logs returns a handler for GET /logs
func Logs(src LogSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"logs": src.Lines()})
	}
}
