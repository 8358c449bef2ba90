package types

import "errors"

// Sentinel errors shared across packages
var (
	// ErrConfiguration indicates a missing credential or setting
	ErrConfiguration = errors.New("language model API key not configured")

	// ErrInvalidURL indicates the URL is not a recognised video URL
	ErrInvalidURL = errors.New("invalid YouTube URL")

	// ErrNoTranscript indicates the video has no usable captions
	ErrNoTranscript = errors.New("no transcript available for this video")

	// ErrNotFound indicates that a record was not found
	ErrNotFound = errors.New("record not found")

	// ErrTimeout indicates an outbound call exceeded its deadline
	ErrTimeout = errors.New("request timed out")

	// ErrQueueFull indicates the worker pool cannot accept more jobs
	ErrQueueFull = errors.New("job queue is full")
)

// SummarizationError is returned for every language model failure. It carries
// the message of the underlying error only, so provider error types never reach
// callers.
type SummarizationError struct {
	Message string
	Timeout bool
}

func (e *SummarizationError) Error() string {
	return "summarization failed: " + e.Message
}

// Is lets errors.Is(err, ErrTimeout) match deadline failures.
func (e *SummarizationError) Is(target error) bool {
	return e.Timeout && target == ErrTimeout
}
