package types

import "time"

// Record status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Fallback summaries used when the model returns no content
const (
	FallbackSegmentSummary  = "Summary could not be generated"
	FallbackCombinedSummary = "Combined summary could not be generated"
)

// Transcript is the persisted record for one source URL
type Transcript struct {
	ID               string
	URL              string
	VideoID          string
	Title            string
	Transcript       string
	Summary          *string
	Status           string
	Error            string
	Degraded         bool
	DegradedSegments []int // chunk indexes whose summary is the fallback text
	ChunkCount       int
	EstimatedTokens  int // transcript size in model tokens, zero when unknown
	ExportPath       string
	DriveURL         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsTerminal reports whether processing of the record has finished
func (t *Transcript) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// ClearResult drops the summary and everything derived from a pipeline run
func (t *Transcript) ClearResult() {
	t.Summary = nil
	t.Degraded = false
	t.DegradedSegments = nil
	t.ChunkCount = 0
	t.EstimatedTokens = 0
}

// SummaryText returns the summary or an empty string when none is set
func (t *Transcript) SummaryText() string {
	if t.Summary == nil {
		return ""
	}
	return *t.Summary
}
