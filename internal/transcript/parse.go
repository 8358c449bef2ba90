package transcript

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

const playerResponseMarker = "ytInitialPlayerResponse"

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
	Captions struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// extractPlayerResponse finds the player response object embedded in a watch
// page. json.Decoder stops at the end of the object so trailing script text is
// ignored.
func extractPlayerResponse(page string) (*playerResponse, error) {
	idx := strings.Index(page, playerResponseMarker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: player response not found", types.ErrNoTranscript)
	}
	rest := page[idx+len(playerResponseMarker):]
	start := strings.Index(rest, "{")
	if start < 0 {
		return nil, fmt.Errorf("%w: player response not found", types.ErrNoTranscript)
	}

	var pr playerResponse
	if err := json.NewDecoder(strings.NewReader(rest[start:])).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return &pr, nil
}

// decodePlayerResponse parses a player response serialized on its own,
// as returned by the browser fetcher.
func decodePlayerResponse(raw string) (*playerResponse, error) {
	if raw == "" || raw == "null" {
		return nil, fmt.Errorf("%w: player response not found", types.ErrNoTranscript)
	}
	var pr playerResponse
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return &pr, nil
}

// selectTrack picks the caption track to use. A manual track in the preferred
// language wins over an auto-generated one; with no match the first track is
// used.
func selectTrack(tracks []captionTrack, language string) (captionTrack, error) {
	if len(tracks) == 0 {
		return captionTrack{}, types.ErrNoTranscript
	}
	if language != "" {
		var auto *captionTrack
		for i := range tracks {
			if !strings.EqualFold(tracks[i].LanguageCode, language) {
				continue
			}
			if tracks[i].Kind != "asr" {
				return tracks[i], nil
			}
			if auto == nil {
				auto = &tracks[i]
			}
		}
		if auto != nil {
			return *auto, nil
		}
	}
	return tracks[0], nil
}

// parseCaptions extracts the caption text from a timedtext document. Segments
// are joined by single spaces with all whitespace runs collapsed.
func parseCaptions(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse captions: %w", err)
	}

	var parts []string
	doc.Find("text").Each(func(_ int, s *goquery.Selection) {
		// timedtext escapes entities twice
		parts = append(parts, html.UnescapeString(s.Text()))
	})

	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if text == "" {
		return "", types.ErrNoTranscript
	}
	return text, nil
}

// pageTitle reads the video title from the watch page markup.
func pageTitle(r io.Reader) string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ""
	}
	if title, ok := doc.Find(`meta[name="title"]`).Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), "- YouTube"))
}
