package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher loads the watch page in headless Chrome and reads the caption
// tracks from the live player. Used when the plain HTTP page is served without
// the player response.
type BrowserFetcher struct {
	baseURL  string
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBrowserFetcher creates a BrowserFetcher
func NewBrowserFetcher(timeout time.Duration, language string, logger *slog.Logger) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserFetcher{
		baseURL:  defaultBaseURL,
		language: language,
		timeout:  timeout,
		logger:   logger.With("component", "browser_fetcher"),
	}
}

// Fetch implements Fetcher
func (b *BrowserFetcher) Fetch(ctx context.Context, videoID string) (*Transcript, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(defaultUserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancel := context.WithTimeout(browserCtx, b.timeout)
	defer cancel()

	page := watchURL(b.baseURL, videoID)
	b.logger.Info("loading watch page", "url", page)

	var raw, title string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(page),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`JSON.stringify(window.ytInitialPlayerResponse || null)`, &raw),
		chromedp.Title(&title),
	)
	if err != nil {
		return nil, fmt.Errorf("load watch page: %w", err)
	}

	pr, err := decodePlayerResponse(raw)
	if err != nil {
		return nil, err
	}

	track, err := selectTrack(pr.Captions.Renderer.CaptionTracks, b.language)
	if err != nil {
		return nil, err
	}

	// Fetched in-page so the request carries the player's cookies.
	var captions string
	err = chromedp.Run(browserCtx,
		chromedp.Evaluate(fmt.Sprintf(`fetch(%q).then(r => r.text())`, track.BaseURL), &captions,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch captions: %w", err)
	}

	text, err := parseCaptions(strings.NewReader(captions))
	if err != nil {
		return nil, err
	}

	if pr.VideoDetails.Title != "" {
		title = pr.VideoDetails.Title
	} else {
		title = strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
	}

	return &Transcript{
		VideoID:  videoID,
		Title:    title,
		Text:     text,
		Language: track.LanguageCode,
	}, nil
}
