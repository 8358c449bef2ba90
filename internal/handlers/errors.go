package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorHandler renders errors that reach Fiber (unknown routes, body limit,
// recovered panics) in the same shape as handler errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(ErrorResponse{
		Error:   statusTitle(code),
		Message: message,
	})
}

func statusTitle(code int) string {
	if msg := utils.StatusMessage(code); msg != "" {
		return msg
	}
	return "Error"
}

// writeError maps err onto a status code and error body
func writeError(c *fiber.Ctx, err error) error {
	status, title, message := classify(err)
	return c.Status(status).JSON(ErrorResponse{
		Error:   title,
		Message: message,
	})
}

// classify returns the status, error title and client message for err.
// Errors from outside the service's own taxonomy get a generic message.
func classify(err error) (int, string, string) {
	var sumErr *types.SummarizationError
	switch {
	case errors.Is(err, types.ErrInvalidURL):
		return fiber.StatusBadRequest, "Invalid request", err.Error()
	case errors.Is(err, types.ErrNotFound):
		return fiber.StatusNotFound, "Record not found", err.Error()
	case errors.Is(err, types.ErrNoTranscript):
		return fiber.StatusUnprocessableEntity, "No transcript available", err.Error()
	case errors.Is(err, types.ErrQueueFull):
		return fiber.StatusServiceUnavailable, "Service busy", err.Error()
	case errors.Is(err, types.ErrConfiguration):
		return fiber.StatusInternalServerError, "Failed to process transcript", "summarization service is not configured"
	case errors.As(err, &sumErr):
		if sumErr.Timeout {
			return fiber.StatusInternalServerError, "Failed to process transcript", "summarization timed out"
		}
		return fiber.StatusInternalServerError, "Failed to process transcript", "summarization failed"
	default:
		return fiber.StatusInternalServerError, "Failed to process transcript", "internal error"
	}
}
