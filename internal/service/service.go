// Package service ties the record store, the per-URL lock and the worker pool
// together behind the operations the HTTP layer exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codebuildervaibhav/video-summarizer/internal/lock"
	"github.com/codebuildervaibhav/video-summarizer/internal/queue"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcript"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// ListLimit is the number of records returned by List
const ListLimit = 50

// Store is the record store used by the service
type Store interface {
	Create(ctx context.Context, t *types.Transcript) error
	GetByID(ctx context.Context, id string) (*types.Transcript, error)
	GetByURL(ctx context.Context, url string) (*types.Transcript, error)
	Update(ctx context.Context, t *types.Transcript) error
	ListRecent(ctx context.Context, limit int) ([]*types.Transcript, error)
}

// Queue accepts processing jobs
type Queue interface {
	Submit(job *queue.Job) (*queue.Job, error)
	Active(id string) (*queue.Job, bool)
}

// Service handles process, status and list requests
type Service struct {
	store  Store
	queue  Queue
	locker lock.Locker
	logger *slog.Logger
}

// New creates a Service
func New(store Store, q Queue, locker lock.Locker, logger *slog.Logger) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		queue:  q,
		locker: locker,
		logger: logger.With("component", "service"),
	}
}

// Process returns the record for url, starting a new run when none exists or
// the previous one failed. With wait set it blocks until the run finishes and
// returns its error; otherwise it returns as soon as the job is queued.
func (s *Service) Process(ctx context.Context, url string, wait bool) (*types.Transcript, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", types.ErrInvalidURL)
	}
	videoID, err := transcript.ExtractVideoID(url)
	if err != nil {
		return nil, err
	}

	rec, job, err := s.findOrSubmit(ctx, url, videoID)
	if err != nil {
		return nil, err
	}
	if job == nil || !wait {
		return rec, nil
	}

	return job.Wait(ctx)
}

// findOrSubmit runs under the per-URL lock so exactly one record and one
// active job exist for a URL. The returned job is nil when rec is final.
func (s *Service) findOrSubmit(ctx context.Context, url, videoID string) (*types.Transcript, *queue.Job, error) {
	unlock, err := s.locker.Lock(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer unlock()

	rec, err := s.store.GetByURL(ctx, url)
	switch {
	case errors.Is(err, types.ErrNotFound):
		rec = &types.Transcript{
			URL:     url,
			VideoID: videoID,
			Status:  types.StatusProcessing,
		}
		if err := s.store.Create(ctx, rec); err != nil {
			return nil, nil, err
		}
		s.logger.Info("created record", "id", rec.ID, "url", url)

	case err != nil:
		return nil, nil, err

	case rec.Status == types.StatusCompleted:
		return rec, nil, nil

	case rec.Status == types.StatusFailed:
		s.logger.Info("retrying failed record", "id", rec.ID, "previous_error", rec.Error)
		rec.Status = types.StatusProcessing
		rec.Error = ""
		if err := s.store.Update(ctx, rec); err != nil {
			return nil, nil, err
		}

	default:
		// pending or processing: join the running job if this process owns it
		if job, ok := s.queue.Active(rec.ID); ok {
			return rec, job, nil
		}
		return rec, nil, nil
	}

	job, err := s.queue.Submit(queue.NewJob(rec.ID, url))
	if err != nil {
		rec.Status = types.StatusFailed
		rec.Error = err.Error()
		if uerr := s.store.Update(ctx, rec); uerr != nil {
			s.logger.Error("failed to mark record failed", "id", rec.ID, "error", uerr)
		}
		return nil, nil, err
	}
	return rec, job, nil
}

// Get returns the record with id
func (s *Service) Get(ctx context.Context, id string) (*types.Transcript, error) {
	return s.store.GetByID(ctx, id)
}

// List returns the most recent records, newest first
func (s *Service) List(ctx context.Context) ([]*types.Transcript, error) {
	return s.store.ListRecent(ctx, ListLimit)
}

// Watch returns a channel closed when the in-flight job for id finishes, or
// nil when no job for id runs in this process.
func (s *Service) Watch(id string) <-chan struct{} {
	if job, ok := s.queue.Active(id); ok {
		return job.Done()
	}
	return nil
}
