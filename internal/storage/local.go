package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// LocalStorage writes completed summaries to the local filesystem
type LocalStorage struct {
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// exportMeta is written next to every exported summary
type exportMeta struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	VideoID          string    `json:"video_id"`
	Title            string    `json:"title"`
	Degraded         bool      `json:"degraded"`
	DegradedSegments []int     `json:"degraded_segments,omitempty"`
	ChunkCount       int       `json:"chunk_count"`
	Characters       int       `json:"transcript_characters"`
	EstimatedTokens  int       `json:"estimated_tokens,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExportedAt       time.Time `json:"exported_at"`
	DriveURL         string    `json:"drive_url,omitempty"`
}

// SaveSummary writes the summary as Markdown plus a metadata JSON file and
// returns the Markdown path.
func (ls *LocalStorage) SaveSummary(t *types.Transcript) (string, error) {
	// outputs/2025/01/23/
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20250123_143022_<video id>
	baseFilename := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(exportName(t)))
	mdPath := filepath.Join(dateDir, baseFilename+".md")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(t)), 0644); err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}

	meta := exportMeta{
		ID:               t.ID,
		URL:              t.URL,
		VideoID:          t.VideoID,
		Title:            t.Title,
		Degraded:         t.Degraded,
		DegradedSegments: t.DegradedSegments,
		ChunkCount:       t.ChunkCount,
		Characters:       len([]rune(t.Transcript)),
		EstimatedTokens:  t.EstimatedTokens,
		CreatedAt:        t.CreatedAt,
		ExportedAt:       now.UTC(),
		DriveURL:         t.DriveURL,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return mdPath, nil
}

// RenderMarkdown formats a completed record for export
func RenderMarkdown(t *types.Transcript) string {
	var b strings.Builder
	title := t.Title
	if title == "" {
		title = t.VideoID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Source: %s\n\n", t.URL)
	if t.Degraded {
		b.WriteString("> Part of this summary could not be generated.\n\n")
	}
	b.WriteString("## Summary\n\n")
	b.WriteString(t.SummaryText())
	b.WriteString("\n")
	return b.String()
}

func exportName(t *types.Transcript) string {
	if t.VideoID != "" {
		return t.VideoID
	}
	return t.ID
}

var unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|\s]+`)

// sanitizeFilename replaces characters that are invalid in file names
func sanitizeFilename(name string) string {
	result := strings.Trim(unsafeFilenameChars.ReplaceAllString(name, "_"), "_.")
	if result == "" {
		result = "summary"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
