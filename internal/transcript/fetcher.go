package transcript

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxPageBytes     = 8 << 20
)

// Transcript is the caption text of one video
type Transcript struct {
	VideoID  string
	Title    string
	Text     string
	Language string
}

// Fetcher retrieves the transcript of a video by id
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (*Transcript, error)
}

// TitleSource looks up a video title
type TitleSource interface {
	Title(ctx context.Context, videoID string) (string, error)
}

// Service resolves a URL to its transcript
type Service struct {
	fetcher Fetcher
	titles  TitleSource
	logger  *slog.Logger
}

// NewService creates a Service. titles may be nil.
func NewService(fetcher Fetcher, titles TitleSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher: fetcher,
		titles:  titles,
		logger:  logger.With("component", "transcript"),
	}
}

// Fetch returns the transcript for a video URL. It fails with
// types.ErrInvalidURL or types.ErrNoTranscript.
func (s *Service) Fetch(ctx context.Context, rawURL string) (*Transcript, error) {
	videoID, err := ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	t, err := s.fetcher.Fetch(ctx, videoID)
	if err != nil {
		s.logger.Error("transcript fetch error", "video_id", videoID, "error", err)
		return nil, err
	}

	if s.titles != nil {
		title, err := s.titles.Title(ctx, videoID)
		switch {
		case err != nil:
			s.logger.Warn("title lookup failed", "video_id", videoID, "error", err)
		case title != "":
			t.Title = title
		}
	}

	s.logger.Info("transcript fetched", "video_id", videoID, "characters", len(t.Text), "language", t.Language)
	return t, nil
}

// HTTPFetcher reads captions from the watch page and the timedtext endpoint
type HTTPFetcher struct {
	client   *http.Client
	baseURL  string
	language string
}

// HTTPOption customises an HTTPFetcher
type HTTPOption func(*HTTPFetcher)

// WithBaseURL points the fetcher at another host
func WithBaseURL(u string) HTTPOption {
	return func(f *HTTPFetcher) {
		if u != "" {
			f.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLanguage sets the preferred caption language
func WithLanguage(lang string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.language = lang
	}
}

// WithHTTPClient replaces the http client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher
func NewHTTPFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, videoID string) (*Transcript, error) {
	page, err := f.get(ctx, watchURL(f.baseURL, videoID))
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	pr, err := extractPlayerResponse(string(page))
	if err != nil {
		return nil, err
	}

	track, err := selectTrack(pr.Captions.Renderer.CaptionTracks, f.language)
	if err != nil {
		return nil, err
	}

	captions, err := f.get(ctx, f.resolve(track.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("fetch captions: %w", err)
	}

	text, err := parseCaptions(bytes.NewReader(captions))
	if err != nil {
		return nil, err
	}

	title := pageTitle(bytes.NewReader(page))
	if title == "" {
		title = pr.VideoDetails.Title
	}

	return &Transcript{
		VideoID:  videoID,
		Title:    title,
		Text:     text,
		Language: track.LanguageCode,
	}, nil
}

// resolve makes relative track URLs absolute against the base URL
func (f *HTTPFetcher) resolve(trackURL string) string {
	if strings.HasPrefix(trackURL, "/") {
		return f.baseURL + trackURL
	}
	return trackURL
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if f.language != "" {
		req.Header.Set("Accept-Language", f.language)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s returned 404", types.ErrNoTranscript, req.URL.Path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}
