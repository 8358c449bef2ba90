package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/video-summarizer/internal/lock"
	"github.com/codebuildervaibhav/video-summarizer/internal/logger"
	"github.com/codebuildervaibhav/video-summarizer/internal/queue"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarizer"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcript"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]types.Transcript
	clock   time.Time
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]types.Transcript), clock: time.Unix(1700000000, 0)}
}

func (s *memStore) Create(_ context.Context, t *types.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.URL == t.URL {
			return errors.New("duplicate url")
		}
	}
	t.ID = uuid.New().String()
	s.clock = s.clock.Add(time.Second)
	t.CreatedAt, t.UpdatedAt = s.clock, s.clock
	s.records[t.ID] = *t
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &r, nil
}

func (s *memStore) GetByURL(_ context.Context, url string) (*types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.URL == url {
			return &r, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *memStore) Update(_ context.Context, t *types.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[t.ID]; !ok {
		return types.ErrNotFound
	}
	s.records[t.ID] = *t
	return nil
}

func (s *memStore) ListRecent(_ context.Context, limit int) ([]*types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Transcript, 0, len(s.records))
	for _, r := range s.records {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (*transcript.Transcript, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &transcript.Transcript{VideoID: "vid", Text: "Short video."}, nil
}

type slowSummarizer struct {
	delay time.Duration
	err   error
}

func (s slowSummarizer) Summarize(ctx context.Context, text string) (*summarizer.Result, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &summarizer.Result{Summary: "summary of " + text, Chunks: 1}, nil
}

func newTestService(t *testing.T, f *countingFetcher, sum slowSummarizer) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	pool := queue.NewWorkerPool(queue.Config{Workers: 2}, f, sum, store, nil, nil, logger.Discard())
	pool.Start()
	t.Cleanup(pool.Stop)
	return New(store, pool, lock.NewLocal(), logger.Discard()), store
}

func TestProcessWaitsForCompletion(t *testing.T) {
	f := &countingFetcher{}
	svc, store := newTestService(t, f, slowSummarizer{})

	rec, err := svc.Process(context.Background(), "https://www.youtube.com/watch?v=vid", true)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if rec.Status != types.StatusCompleted || rec.SummaryText() != "summary of Short video." || rec.Transcript != "Short video." {
		t.Errorf("record = %+v", rec)
	}

	// second request returns the stored record without new work
	again, err := svc.Process(context.Background(), "https://www.youtube.com/watch?v=vid", true)
	if err != nil || again.ID != rec.ID || again.Status != types.StatusCompleted {
		t.Errorf("repeat Process() = %+v, %v", again, err)
	}
	if f.calls.Load() != 1 || store.len() != 1 {
		t.Errorf("fetch calls = %d, records = %d; want 1, 1", f.calls.Load(), store.len())
	}
}

func TestProcessAsync(t *testing.T) {
	svc, _ := newTestService(t, &countingFetcher{}, slowSummarizer{delay: 50 * time.Millisecond})

	rec, err := svc.Process(context.Background(), "https://youtu.be/vid", false)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if rec.Status != types.StatusProcessing || rec.ID == "" {
		t.Fatalf("record = %+v", rec)
	}

	done := svc.Watch(rec.ID)
	if done == nil {
		t.Fatal("Watch() returned nil for a running job")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}

	got, err := svc.Get(context.Background(), rec.ID)
	if err != nil || got.Status != types.StatusCompleted {
		t.Errorf("Get() = %+v, %v", got, err)
	}
}

func TestProcessConcurrentSameURL(t *testing.T) {
	f := &countingFetcher{}
	svc, store := newTestService(t, f, slowSummarizer{delay: 30 * time.Millisecond})

	var wg sync.WaitGroup
	ids := make([]string, 6)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := svc.Process(context.Background(), "https://youtu.be/same", true)
			if err != nil {
				t.Errorf("Process() error = %v", err)
				return
			}
			ids[i] = rec.ID
		}()
	}
	wg.Wait()

	if store.len() != 1 {
		t.Errorf("records = %d, want 1", store.len())
	}
	if f.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls.Load())
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Errorf("requests saw different records: %v", ids)
			break
		}
	}
}

func TestProcessFailureAndRetry(t *testing.T) {
	f := &countingFetcher{}
	sumErr := &types.SummarizationError{Message: "upstream 500"}
	store := newMemStore()
	failing := queue.NewWorkerPool(queue.Config{Workers: 1}, f, slowSummarizer{err: sumErr}, store, nil, nil, logger.Discard())
	failing.Start()
	defer failing.Stop()

	svc := New(store, failing, nil, logger.Discard())
	rec, err := svc.Process(context.Background(), "https://youtu.be/retry", true)
	var se *types.SummarizationError
	if !errors.As(err, &se) {
		t.Fatalf("Process() error = %v, want SummarizationError", err)
	}
	if rec == nil || rec.Status != types.StatusFailed || rec.Error == "" {
		t.Errorf("failed record = %+v", rec)
	}
	if stored, _ := store.GetByID(context.Background(), rec.ID); stored.Summary != nil {
		t.Errorf("failed record stored a summary: %q", *stored.Summary)
	}

	working := queue.NewWorkerPool(queue.Config{Workers: 1}, f, slowSummarizer{}, store, nil, nil, logger.Discard())
	working.Start()
	defer working.Stop()

	retried, err := New(store, working, nil, logger.Discard()).Process(context.Background(), "https://youtu.be/retry", true)
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if retried.ID != rec.ID || retried.Status != types.StatusCompleted || retried.Error != "" {
		t.Errorf("retried record = %+v", retried)
	}
	if store.len() != 1 {
		t.Errorf("records = %d, want 1", store.len())
	}
}

func TestProcessRejectsBadInput(t *testing.T) {
	svc, store := newTestService(t, &countingFetcher{}, slowSummarizer{})

	for _, url := range []string{"", "   ", "https://vimeo.com/1", "not a url"} {
		if _, err := svc.Process(context.Background(), url, true); !errors.Is(err, types.ErrInvalidURL) {
			t.Errorf("Process(%q) error = %v, want ErrInvalidURL", url, err)
		}
	}
	if store.len() != 0 {
		t.Errorf("records = %d, want 0", store.len())
	}
}

func TestProcessNoTranscript(t *testing.T) {
	svc, store := newTestService(t, &countingFetcher{err: types.ErrNoTranscript}, slowSummarizer{})

	rec, err := svc.Process(context.Background(), "https://youtu.be/silent", true)
	if !errors.Is(err, types.ErrNoTranscript) {
		t.Fatalf("Process() error = %v", err)
	}
	got, _ := store.GetByID(context.Background(), rec.ID)
	if got.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

type fullQueue struct{}

func (fullQueue) Submit(*queue.Job) (*queue.Job, error) { return nil, types.ErrQueueFull }
func (fullQueue) Active(string) (*queue.Job, bool)     { return nil, false }

func TestProcessQueueFull(t *testing.T) {
	store := newMemStore()
	svc := New(store, fullQueue{}, nil, logger.Discard())

	if _, err := svc.Process(context.Background(), "https://youtu.be/busy", true); !errors.Is(err, types.ErrQueueFull) {
		t.Fatalf("Process() error = %v, want ErrQueueFull", err)
	}
	rec, err := store.GetByURL(context.Background(), "https://youtu.be/busy")
	if err != nil || rec.Status != types.StatusFailed {
		t.Errorf("record = %+v, %v", rec, err)
	}
}

func TestList(t *testing.T) {
	store := newMemStore()
	for i := 0; i < ListLimit+5; i++ {
		_ = store.Create(context.Background(), &types.Transcript{URL: uuid.New().String(), Status: types.StatusCompleted})
	}
	svc := New(store, fullQueue{}, nil, logger.Discard())

	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != ListLimit {
		t.Fatalf("List() returned %d records, want %d", len(got), ListLimit)
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Fatal("List() not ordered newest first")
		}
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}
