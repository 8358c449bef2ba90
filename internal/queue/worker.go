package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/summarizer"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcript"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// TranscriptFetcher resolves a video URL to its transcript
type TranscriptFetcher interface {
	Fetch(ctx context.Context, url string) (*transcript.Transcript, error)
}

// Summarizer turns transcript text into a summary
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*summarizer.Result, error)
}

// Store is the subset of the record store the workers need
type Store interface {
	GetByID(ctx context.Context, id string) (*types.Transcript, error)
	Update(ctx context.Context, t *types.Transcript) error
}

// LocalExporter writes a completed record to disk
type LocalExporter interface {
	SaveSummary(t *types.Transcript) (string, error)
}

// DriveUploader uploads a completed record to Google Drive
type DriveUploader interface {
	Upload(ctx context.Context, t *types.Transcript) (string, error)
}

// Config controls the worker pool
type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	// DriveRetryBase is the backoff unit between Drive upload attempts
	DriveRetryBase time.Duration
}

// WorkerPool manages a pool of workers processing summarization jobs
type WorkerPool struct {
	cfg        Config
	jobQueue   chan *Job
	fetcher    TranscriptFetcher
	summarizer Summarizer
	store      Store
	local      LocalExporter
	drive      DriveUploader
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]*Job
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. local and drive may be nil.
func NewWorkerPool(
	cfg Config,
	fetcher TranscriptFetcher,
	sum Summarizer,
	store Store,
	local LocalExporter,
	drive DriveUploader,
	logger *slog.Logger,
) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 15 * time.Minute
	}
	if cfg.DriveRetryBase <= 0 {
		cfg.DriveRetryBase = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		cfg:        cfg,
		jobQueue:   make(chan *Job, cfg.QueueSize),
		fetcher:    fetcher,
		summarizer: sum,
		store:      store,
		local:      local,
		drive:      drive,
		logger:     logger.With("component", "worker_pool"),
		active:     make(map[string]*Job),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.logger.Info("starting worker pool", "workers", wp.cfg.Workers, "queue_size", wp.cfg.QueueSize)
	for i := 0; i < wp.cfg.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still
// queued are finished with context.Canceled.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.cancel()
	wp.wg.Wait()
	wp.logger.Info("worker pool stopped")
}

// Submit enqueues a job without blocking. It fails with types.ErrQueueFull
// when the buffer is full. A job already active for the same record is
// returned instead of the new one.
func (wp *WorkerPool) Submit(job *Job) (*Job, error) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return nil, errors.New("worker pool is stopped")
	}
	if existing, ok := wp.active[job.ID]; ok && !existing.finished() {
		return existing, nil
	}

	select {
	case wp.jobQueue <- job:
	default:
		return nil, types.ErrQueueFull
	}
	wp.active[job.ID] = job

	wp.logger.Info("job enqueued", "job_id", job.ID, "url", job.URL, "queued", len(wp.jobQueue))
	return job, nil
}

// Active returns the in-flight job for a record id
func (wp *WorkerPool) Active(id string) (*Job, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	job, ok := wp.active[id]
	return job, ok
}

func (wp *WorkerPool) release(job *Job) {
	wp.mu.Lock()
	if wp.active[job.ID] == job {
		delete(wp.active, job.ID)
	}
	wp.mu.Unlock()
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	logger := wp.logger.With("worker", id)
	logger.Debug("worker started")

	for job := range wp.jobQueue {
		// Panic recovery
		func() {
			defer wp.release(job)
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic processing job", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
					err := fmt.Errorf("worker panic: %v", r)
					wp.fail(job, nil, err)
				}
			}()

			wp.processJob(logger, job)
		}()
	}
}

// processJob runs fetch, summarize, persist and export for one record
func (wp *WorkerPool) processJob(logger *slog.Logger, job *Job) {
	logger = logger.With("job_id", job.ID)

	if err := wp.ctx.Err(); err != nil {
		wp.fail(job, nil, err)
		return
	}

	ctx, cancel := context.WithTimeout(wp.ctx, wp.cfg.JobTimeout)
	defer cancel()

	logger.Info("processing job", "url", job.URL)
	job.setStatus(types.StatusProcessing)
	start := time.Now()

	rec, err := wp.store.GetByID(ctx, job.ID)
	if err != nil {
		logger.Error("failed to load record", "error", err)
		job.finish(nil, err)
		return
	}

	// Step 1: Fetch transcript
	t, err := wp.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		logger.Error("transcript fetch failed", "error", err)
		wp.fail(job, rec, err)
		return
	}
	rec.VideoID = t.VideoID
	rec.Title = t.Title
	rec.Transcript = t.Text
	if err := wp.store.Update(ctx, rec); err != nil {
		logger.Warn("failed to save transcript text", "error", err)
	}

	// Step 2: Summarize
	result, err := wp.summarizer.Summarize(ctx, t.Text)
	if err != nil {
		logger.Error("summarization failed", "error", err)
		wp.fail(job, rec, err)
		return
	}

	// Step 3: Persist. rec stays without a summary until the write succeeds.
	completed := *rec
	summary := result.Summary
	completed.Summary = &summary
	completed.Status = types.StatusCompleted
	completed.Error = ""
	completed.Degraded = result.Degraded
	completed.DegradedSegments = result.DegradedSegments
	completed.ChunkCount = result.Chunks
	completed.EstimatedTokens = result.EstimatedTokens
	if err := wp.store.Update(ctx, &completed); err != nil {
		logger.Error("failed to save summary", "error", err)
		wp.fail(job, rec, err)
		return
	}

	logger.Info("job completed",
		"chunks", result.Chunks, "degraded", result.Degraded,
		"estimated_tokens", result.EstimatedTokens, "duration", time.Since(start).Round(time.Millisecond))

	// Waiters get the completed record before the exports run.
	final := completed
	job.finish(&final, nil)

	// Step 4: Export
	wp.export(ctx, logger, &completed)
}

// export writes the summary locally and to Drive. Failures are logged only.
func (wp *WorkerPool) export(ctx context.Context, logger *slog.Logger, rec *types.Transcript) {
	if wp.local == nil && wp.drive == nil {
		return
	}

	if wp.local != nil {
		path, err := wp.local.SaveSummary(rec)
		if err != nil {
			logger.Warn("local export failed", "error", err)
		} else {
			rec.ExportPath = path
		}
	}

	if wp.drive != nil {
		var err error
		for attempt := 1; attempt <= 3; attempt++ {
			var link string
			link, err = wp.drive.Upload(ctx, rec)
			if err == nil {
				rec.DriveURL = link
				break
			}
			logger.Warn("google drive upload failed", "attempt", attempt, "error", err)
			if attempt < 3 {
				select {
				case <-time.After(time.Duration(attempt*attempt) * wp.cfg.DriveRetryBase):
				case <-ctx.Done():
					attempt = 3
				}
			}
		}
		if err != nil {
			logger.Warn("google drive upload failed after 3 attempts, keeping local export only")
		}
	}

	if err := wp.store.Update(ctx, rec); err != nil {
		logger.Warn("failed to save export locations", "error", err)
		return
	}
	logger.Info("summary exported", "local", rec.ExportPath, "gdrive", rec.DriveURL)
}

// fail marks the record failed and finishes the job with err. A job that
// already finished keeps its stored outcome.
func (wp *WorkerPool) fail(job *Job, rec *types.Transcript, err error) {
	if job.finished() {
		wp.logger.Warn("error after job finished", "job_id", job.ID, "error", err)
		return
	}
	if rec == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rec, _ = wp.store.GetByID(ctx, job.ID)
	}
	if rec != nil {
		rec.Status = types.StatusFailed
		rec.Error = err.Error()
		rec.ClearResult()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if uerr := wp.store.Update(ctx, rec); uerr != nil {
			wp.logger.Error("failed to mark record failed", "job_id", job.ID, "error", uerr)
		}
		failed := *rec
		rec = &failed
	}
	job.finish(rec, err)
}
