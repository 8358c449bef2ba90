package transcript

import (
	"net/url"
	"strings"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// pathPrefixes are youtube.com paths that carry the id as the next segment
var pathPrefixes = []string{"/shorts/", "/embed/", "/live/"}

// ExtractVideoID returns the video id of a YouTube URL.
//
// Supported forms:
//   - https://www.youtube.com/watch?v=<id>
//   - https://www.youtube.com/shorts/<id> (also /embed/ and /live/)
//   - https://youtu.be/<id>
func ExtractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", types.ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	var id string

	switch {
	case strings.Contains(host, "youtube.com"):
		id = u.Query().Get("v")
		if id == "" {
			for _, prefix := range pathPrefixes {
				if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
					id = firstSegment(rest)
					break
				}
			}
		}
	case strings.Contains(host, "youtu.be"):
		id = firstSegment(strings.TrimPrefix(u.Path, "/"))
	}

	if id == "" {
		return "", types.ErrInvalidURL
	}
	return id, nil
}

func firstSegment(p string) string {
	seg, _, _ := strings.Cut(p, "/")
	return seg
}

// watchURL returns the watch page URL for a video id under base
func watchURL(base, videoID string) string {
	return base + "/watch?v=" + url.QueryEscape(videoID)
}
