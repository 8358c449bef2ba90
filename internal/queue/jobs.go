package queue

import (
	"context"
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Job represents one summarization run for a stored record
type Job struct {
	ID        string // record id
	URL       string
	CreatedAt time.Time

	mu     sync.Mutex
	status string
	err    error
	record *types.Transcript
	done   chan struct{}
}

// NewJob creates a new pending job for record id
func NewJob(id, url string) *Job {
	return &Job{
		ID:        id,
		URL:       url,
		CreatedAt: time.Now(),
		status:    types.StatusPending,
		done:      make(chan struct{}),
	}
}

// Status returns the current job status
func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(status string) {
	j.mu.Lock()
	j.status = status
	j.mu.Unlock()
}

// finish records the outcome and wakes every waiter. Only the first call counts.
func (j *Job) finish(record *types.Transcript, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.done:
		return
	default:
	}
	j.record = record
	j.err = err
	if err != nil {
		j.status = types.StatusFailed
	} else {
		j.status = types.StatusCompleted
	}
	close(j.done)
}

func (j *Job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Done is closed when the job reaches a terminal state
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done. It returns the final
// record and the processing error, if any.
func (j *Job) Wait(ctx context.Context) (*types.Transcript, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.record, j.err
}
