// Package cleanup marks records left in processing by a crashed or restarted
// server as failed so the next request for the URL starts a new run.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InterruptedMessage is stored on records failed by the reaper
const InterruptedMessage = "processing interrupted"

// StaleStore fails records that have not been updated since cutoff
type StaleStore interface {
	FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// Reaper periodically fails stale pending and processing records
type Reaper struct {
	store    StaleStore
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReaper creates a new reaper
func NewReaper(store StaleStore, intervalMinutes, maxAgeHours int, logger *slog.Logger) *Reaper {
	if intervalMinutes <= 0 {
		intervalMinutes = 10
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		logger:   logger.With("component", "reaper"),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval
func (r *Reaper) Start() {
	r.logger.Info("running initial stale record sweep")
	r.sweep()

	ticker := time.NewTicker(r.interval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stopChan:
				return
			}
		}
	}()

	r.logger.Info("reaper started", "interval", r.interval, "max_age", r.maxAge)
}

// Stop stops the reaper
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
		r.logger.Info("reaper stopped")
	})
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := r.now().Add(-r.maxAge)
	n, err := r.store.FailStale(ctx, cutoff, InterruptedMessage)
	if err != nil {
		r.logger.Error("stale record sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Warn("failed stale records", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
}
