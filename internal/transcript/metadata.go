package transcript

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// YouTubeMetadata looks up video titles through the YouTube Data API
type YouTubeMetadata struct {
	service *youtube.Service
}

// NewYouTubeMetadata creates a YouTube Data API client authenticated by key
func NewYouTubeMetadata(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeMetadata, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: youtube api key", types.ErrConfiguration)
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	srv, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube client: %w", err)
	}
	return &YouTubeMetadata{service: srv}, nil
}

// Title implements TitleSource
func (m *YouTubeMetadata) Title(ctx context.Context, videoID string) (string, error) {
	resp, err := m.service.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("videos.list: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return "", fmt.Errorf("video %s: %w", videoID, types.ErrNotFound)
	}
	return resp.Items[0].Snippet.Title, nil
}
