package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/video-summarizer/internal/llm"
	"github.com/codebuildervaibhav/video-summarizer/internal/telemetry"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

const (
	defaultCallTimeout      = 60 * time.Second
	defaultSegmentMaxTokens = 500
	defaultCombineMaxTokens = 800
	defaultTemperature      = 0.3
)

// Result is the outcome of one Summarize call
type Result struct {
	Summary string
	Chunks  int
	// Degraded is set when any model call returned no content and a fallback
	// string was used in its place.
	Degraded bool
	// DegradedSegments lists the chunk indexes whose summary is the fallback.
	DegradedSegments []int
	// EstimatedTokens is the transcript size in model tokens, zero when no
	// token counter is configured.
	EstimatedTokens int
}

// Pipeline chunks a transcript, summarizes every chunk concurrently and merges
// the chunk summaries with a final model call.
type Pipeline struct {
	client           llm.Client
	logger           *slog.Logger
	tokens           llm.TokenCounter
	tracer           trace.Tracer
	chunkSize        int
	maxConcurrency   int
	callTimeout      time.Duration
	segmentMaxTokens int64
	combineMaxTokens int64
	temperature      float64
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithChunkSize sets the character budget per chunk
func WithChunkSize(size int) Option {
	return func(p *Pipeline) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithMaxConcurrency bounds in-flight segment calls; 0 means no bound
func WithMaxConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxConcurrency = n
		}
	}
}

// WithCallTimeout sets the deadline for each model call
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

// WithMaxTokens sets the output budgets for segment and combine calls
func WithMaxTokens(segment, combine int64) Option {
	return func(p *Pipeline) {
		if segment > 0 {
			p.segmentMaxTokens = segment
		}
		if combine > 0 {
			p.combineMaxTokens = combine
		}
	}
}

// WithTemperature sets the sampling temperature for every call
func WithTemperature(t float64) Option {
	return func(p *Pipeline) {
		if t >= 0 {
			p.temperature = t
		}
	}
}

// WithTokenCounter enables token estimates in Result
func WithTokenCounter(c llm.TokenCounter) Option {
	return func(p *Pipeline) {
		p.tokens = c
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline. client may be nil when no credential is configured;
// Summarize then fails with types.ErrConfiguration.
func New(client llm.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:           client,
		logger:           slog.Default(),
		tracer:           telemetry.Tracer("github.com/codebuildervaibhav/video-summarizer/internal/summarizer"),
		chunkSize:        DefaultChunkSize,
		callTimeout:      defaultCallTimeout,
		segmentMaxTokens: defaultSegmentMaxTokens,
		combineMaxTokens: defaultCombineMaxTokens,
		temperature:      defaultTemperature,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "summarizer")
	return p
}

// Summarize produces one summary for transcript. Every model failure is
// returned as a *types.SummarizationError.
func (p *Pipeline) Summarize(ctx context.Context, transcript string) (res *Result, err error) {
	if p.client == nil {
		return nil, types.ErrConfiguration
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, types.ErrNoTranscript
	}

	ctx, span := p.tracer.Start(ctx, "summarizer.Summarize")
	defer func() { telemetry.End(span, err) }()

	chunks := Chunk(transcript, p.chunkSize)
	span.SetAttributes(attribute.Int("summarizer.chunks", len(chunks)))

	res = &Result{Chunks: len(chunks)}
	if p.tokens != nil {
		res.EstimatedTokens = p.tokens.CountTokens(transcript)
	}
	p.logger.Info("summarizing transcript",
		"characters", len(transcript), "chunks", len(chunks), "estimated_tokens", res.EstimatedTokens)

	if len(chunks) == 1 {
		seg, err := p.summarizeChunk(ctx, 0, chunks[0])
		if err != nil {
			return nil, p.fail(err)
		}
		res.Summary = seg.text
		if seg.degraded {
			res.Degraded = true
			res.DegradedSegments = []int{0}
		}
		return res, nil
	}

	segments, err := p.summarizeChunks(ctx, chunks)
	if err != nil {
		return nil, p.fail(err)
	}

	summaries := make([]string, len(segments))
	for i, seg := range segments {
		summaries[i] = seg.text
		if seg.degraded {
			res.Degraded = true
			res.DegradedSegments = append(res.DegradedSegments, i)
		}
	}

	combined, err := p.combine(ctx, summaries)
	if err != nil {
		return nil, p.fail(err)
	}
	res.Summary = combined.text
	res.Degraded = res.Degraded || combined.degraded

	return res, nil
}

type segment struct {
	text     string
	degraded bool
}

// summarizeChunks issues one call per chunk without waiting for earlier ones.
// Results are stored by chunk index so their order never depends on which
// call finished first. The first failure cancels the remaining calls.
func (p *Pipeline) summarizeChunks(ctx context.Context, chunks []string) ([]segment, error) {
	out := make([]segment, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	if p.maxConcurrency > 0 {
		g.SetLimit(p.maxConcurrency)
	}

	for i, chunk := range chunks {
		g.Go(func() error {
			seg, err := p.summarizeChunk(gctx, i, chunk)
			if err != nil {
				return err
			}
			out[i] = seg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) summarizeChunk(ctx context.Context, index int, chunk string) (seg segment, err error) {
	ctx, span := p.tracer.Start(ctx, "summarizer.segment",
		trace.WithAttributes(attribute.Int("summarizer.chunk_index", index)))
	defer func() { telemetry.End(span, err) }()

	text, err := p.complete(ctx, llm.Request{
		System:      SegmentSystemPrompt,
		User:        fmt.Sprintf(SegmentUserPrompt, chunk),
		MaxTokens:   p.segmentMaxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return segment{}, err
	}

	if text == "" {
		p.logger.Warn("model returned no content for chunk, using fallback", "chunk", index)
		return segment{text: types.FallbackSegmentSummary, degraded: true}, nil
	}
	return segment{text: text}, nil
}

func (p *Pipeline) combine(ctx context.Context, summaries []string) (seg segment, err error) {
	ctx, span := p.tracer.Start(ctx, "summarizer.combine",
		trace.WithAttributes(attribute.Int("summarizer.segments", len(summaries))))
	defer func() { telemetry.End(span, err) }()

	text, err := p.complete(ctx, llm.Request{
		System:      CombineSystemPrompt,
		User:        fmt.Sprintf(CombineUserPrompt, strings.Join(summaries, summarySeparator)),
		MaxTokens:   p.combineMaxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return segment{}, err
	}

	if text == "" {
		p.logger.Warn("model returned no content for combined summary, using fallback")
		return segment{text: types.FallbackCombinedSummary, degraded: true}, nil
	}
	return segment{text: text}, nil
}

// complete runs one model call under the per-call deadline and converts any
// failure into a SummarizationError.
func (p *Pipeline) complete(ctx context.Context, req llm.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	text, err := p.client.Complete(callCtx, req)
	if err != nil {
		return "", &types.SummarizationError{
			Message: err.Error(),
			Timeout: errors.Is(callCtx.Err(), context.DeadlineExceeded),
		}
	}
	return text, nil
}

// fail logs a pipeline failure and guarantees the uniform error type.
func (p *Pipeline) fail(err error) error {
	p.logger.Error("LLM summarization error", "error", err)

	var sumErr *types.SummarizationError
	if errors.As(err, &sumErr) {
		return sumErr
	}
	return &types.SummarizationError{Message: err.Error()}
}
