package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/llm"
	"github.com/codebuildervaibhav/video-summarizer/internal/logger"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// mockClient records every request and answers with respond.
type mockClient struct {
	mu       sync.Mutex
	requests []llm.Request
	respond  func(ctx context.Context, req llm.Request) (string, error)
}

func (m *mockClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.respond(ctx, req)
}

func (m *mockClient) count(system string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.System == system {
			n++
		}
	}
	return n
}

func (m *mockClient) last(system string) llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		if m.requests[i].System == system {
			return m.requests[i]
		}
	}
	return llm.Request{}
}

// transportError stands in for a provider SDK error type.
type transportError struct{ status int }

func (e *transportError) Error() string { return fmt.Sprintf("provider returned %d", e.status) }

type fixedCounter int

func (c fixedCounter) CountTokens(string) int { return int(c) }

func chunkOf(req llm.Request) string {
	return strings.TrimPrefix(req.User, fmt.Sprintf(SegmentUserPrompt, ""))
}

func newTestPipeline(client llm.Client, opts ...Option) *Pipeline {
	return New(client, append([]Option{WithLogger(logger.Discard())}, opts...)...)
}

func TestSummarizeSingleChunk(t *testing.T) {
	client := &mockClient{respond: func(context.Context, llm.Request) (string, error) {
		return "raw model output", nil
	}}

	res, err := newTestPipeline(client, WithTokenCounter(fixedCounter(4))).
		Summarize(context.Background(), "Short video.")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if res.Summary != "raw model output" {
		t.Errorf("Summary = %q", res.Summary)
	}
	if res.Chunks != 1 || res.Degraded || res.EstimatedTokens != 4 {
		t.Errorf("result = %+v", res)
	}
	if len(client.requests) != 1 {
		t.Fatalf("model calls = %d, want 1", len(client.requests))
	}
	if client.count(CombineSystemPrompt) != 0 {
		t.Error("combiner must not run for a single chunk")
	}

	req := client.requests[0]
	if req.System != SegmentSystemPrompt {
		t.Errorf("System = %q", req.System)
	}
	if req.User != fmt.Sprintf(SegmentUserPrompt, "Short video.") {
		t.Errorf("User = %q", req.User)
	}
	if req.MaxTokens != 500 || req.Temperature != 0.3 {
		t.Errorf("MaxTokens/Temperature = %d/%v, want 500/0.3", req.MaxTokens, req.Temperature)
	}
}

func TestSummarizeMultiChunkKeepsOrder(t *testing.T) {
	text, _ := prose(20000)
	chunks := Chunk(text, DefaultChunkSize)
	index := make(map[string]int, len(chunks))
	for i, c := range chunks {
		index[c] = i
	}

	client := &mockClient{respond: func(_ context.Context, req llm.Request) (string, error) {
		if req.System == CombineSystemPrompt {
			return "final summary", nil
		}
		i, ok := index[chunkOf(req)]
		if !ok {
			return "", errors.New("unknown chunk")
		}
		// Earlier chunks finish last.
		time.Sleep(time.Duration(len(chunks)-i) * 15 * time.Millisecond)
		return fmt.Sprintf("summary %d", i), nil
	}}

	res, err := newTestPipeline(client).Summarize(context.Background(), text)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if res.Summary != "final summary" || res.Chunks != len(chunks) {
		t.Errorf("result = %+v", res)
	}
	if got := client.count(SegmentSystemPrompt); got != len(chunks) {
		t.Errorf("segment calls = %d, want %d", got, len(chunks))
	}
	if got := client.count(CombineSystemPrompt); got != 1 {
		t.Errorf("combine calls = %d, want 1", got)
	}

	var want []string
	for i := range chunks {
		want = append(want, fmt.Sprintf("summary %d", i))
	}
	combineReq := client.last(CombineSystemPrompt)
	if combineReq.User != fmt.Sprintf(CombineUserPrompt, strings.Join(want, "\n\n")) {
		t.Errorf("combine input out of order: %q", combineReq.User)
	}
	if combineReq.MaxTokens != 800 || combineReq.Temperature != 0.3 {
		t.Errorf("combine MaxTokens/Temperature = %d/%v", combineReq.MaxTokens, combineReq.Temperature)
	}
}

func TestSummarizeSegmentsRunConcurrently(t *testing.T) {
	text, _ := prose(20000)
	n := len(Chunk(text, DefaultChunkSize))

	var inFlight, peak int32
	release := make(chan struct{})
	var once sync.Once
	client := &mockClient{respond: func(_ context.Context, req llm.Request) (string, error) {
		if req.System == CombineSystemPrompt {
			return "done", nil
		}
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		if int(cur) == n {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		atomic.AddInt32(&inFlight, -1)
		return "s", nil
	}}

	if _, err := newTestPipeline(client).Summarize(context.Background(), text); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if int(peak) != n {
		t.Errorf("peak in-flight segment calls = %d, want %d", peak, n)
	}
}

func TestSummarizeMaxConcurrency(t *testing.T) {
	text, _ := prose(30000)

	var inFlight, peak int32
	client := &mockClient{respond: func(_ context.Context, req llm.Request) (string, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return "s", nil
	}}

	if _, err := newTestPipeline(client, WithMaxConcurrency(2)).Summarize(context.Background(), text); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if peak > 2 {
		t.Errorf("peak in-flight calls = %d, want <= 2", peak)
	}
}

func TestSummarizeEmptyContentFallback(t *testing.T) {
	t.Run("single chunk", func(t *testing.T) {
		client := &mockClient{respond: func(context.Context, llm.Request) (string, error) {
			return "", nil
		}}
		res, err := newTestPipeline(client).Summarize(context.Background(), "Short video.")
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if res.Summary != types.FallbackSegmentSummary {
			t.Errorf("Summary = %q", res.Summary)
		}
		if !res.Degraded || len(res.DegradedSegments) != 1 {
			t.Errorf("degraded flags = %v %v", res.Degraded, res.DegradedSegments)
		}
	})

	t.Run("one segment empty", func(t *testing.T) {
		text, _ := prose(20000)
		chunks := Chunk(text, DefaultChunkSize)
		client := &mockClient{respond: func(_ context.Context, req llm.Request) (string, error) {
			if req.System == CombineSystemPrompt {
				return "combined", nil
			}
			if chunkOf(req) == chunks[1] {
				return "", nil
			}
			return "ok", nil
		}}
		res, err := newTestPipeline(client).Summarize(context.Background(), text)
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if res.Summary != "combined" || !res.Degraded {
			t.Errorf("result = %+v", res)
		}
		if len(res.DegradedSegments) != 1 || res.DegradedSegments[0] != 1 {
			t.Errorf("DegradedSegments = %v, want [1]", res.DegradedSegments)
		}
		if !strings.Contains(client.last(CombineSystemPrompt).User, types.FallbackSegmentSummary) {
			t.Error("combiner should receive the fallback text")
		}
	})

	t.Run("combine empty", func(t *testing.T) {
		text, _ := prose(20000)
		client := &mockClient{respond: func(_ context.Context, req llm.Request) (string, error) {
			if req.System == CombineSystemPrompt {
				return "", nil
			}
			return "ok", nil
		}}
		res, err := newTestPipeline(client).Summarize(context.Background(), text)
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		if res.Summary != types.FallbackCombinedSummary || !res.Degraded {
			t.Errorf("result = %+v", res)
		}
	})
}

func TestSummarizeOneChunkFails(t *testing.T) {
	text, _ := prose(20000)
	chunks := Chunk(text, DefaultChunkSize)

	client := &mockClient{respond: func(ctx context.Context, req llm.Request) (string, error) {
		if chunkOf(req) == chunks[len(chunks)-1] {
			return "", &transportError{status: 429}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return "ok", nil
		}
	}}

	res, err := newTestPipeline(client).Summarize(context.Background(), text)
	if res != nil {
		t.Errorf("expected no partial result, got %+v", res)
	}

	var sumErr *types.SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("err = %v (%T), want *SummarizationError", err, err)
	}
	var te *transportError
	if errors.As(err, &te) {
		t.Error("transport error type leaked through the pipeline")
	}
	if client.count(CombineSystemPrompt) != 0 {
		t.Error("combiner must not run after a segment failure")
	}
}

func TestSummarizeCombineFails(t *testing.T) {
	text, _ := prose(20000)
	client := &mockClient{respond: func(_ context.Context, req llm.Request) (string, error) {
		if req.System == CombineSystemPrompt {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	}}

	_, err := newTestPipeline(client).Summarize(context.Background(), text)
	var sumErr *types.SummarizationError
	if !errors.As(err, &sumErr) || !strings.Contains(sumErr.Message, "connection reset") {
		t.Fatalf("err = %v, want SummarizationError carrying the message", err)
	}
}

func TestSummarizeTimeout(t *testing.T) {
	client := &mockClient{respond: func(ctx context.Context, _ llm.Request) (string, error) {
		<-ctx.Done()
		return "", fmt.Errorf("request failed: %w", ctx.Err())
	}}

	_, err := newTestPipeline(client, WithCallTimeout(20*time.Millisecond)).
		Summarize(context.Background(), "Short video.")
	if !errors.Is(err, types.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Error("context error should not be exposed")
	}
}

func TestSummarizeMissingCredential(t *testing.T) {
	res, err := newTestPipeline(nil).Summarize(context.Background(), "Short video.")
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if res != nil {
		t.Error("expected nil result")
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	client := &mockClient{respond: func(context.Context, llm.Request) (string, error) {
		return "unused", nil
	}}

	for _, input := range []string{"", "   \n\t"} {
		_, err := newTestPipeline(client).Summarize(context.Background(), input)
		if !errors.Is(err, types.ErrNoTranscript) {
			t.Errorf("Summarize(%q) err = %v, want ErrNoTranscript", input, err)
		}
	}
	if len(client.requests) != 0 {
		t.Errorf("model calls = %d, want 0", len(client.requests))
	}
}

func TestOptions(t *testing.T) {
	p := New(nil,
		WithChunkSize(100),
		WithMaxTokens(10, 20),
		WithTemperature(0.9),
		WithCallTimeout(time.Second),
		WithMaxConcurrency(3),
	)
	if p.chunkSize != 100 || p.segmentMaxTokens != 10 || p.combineMaxTokens != 20 {
		t.Errorf("pipeline = %+v", p)
	}
	if p.temperature != 0.9 || p.callTimeout != time.Second || p.maxConcurrency != 3 {
		t.Errorf("pipeline = %+v", p)
	}

	d := New(nil, WithChunkSize(0), WithMaxTokens(0, 0))
	if d.chunkSize != DefaultChunkSize || d.segmentMaxTokens != 500 || d.combineMaxTokens != 800 {
		t.Errorf("zero options should keep defaults: %+v", d)
	}
	if z := New(nil, WithTemperature(0)); z.temperature != 0 {
		t.Errorf("temperature = %v, want explicit 0", z.temperature)
	}
}
