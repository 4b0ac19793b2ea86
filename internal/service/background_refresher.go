package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// BackgroundRefresher runs a job periodically without ever overlapping runs.
// The interval is measured from the end of one run to the start of the next,
// so a slow upstream stretches the cycle instead of stacking requests.
type BackgroundRefresher struct {
	name     string
	job      Job
	interval time.Duration
	logger   *slog.Logger

	trigger chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	// runMu serializes job runs from the loop and RunOnce.
	runMu sync.Mutex

	// OnComplete, when set, observes every finished run.
	OnComplete func(err error, duration time.Duration)
}

// NewBackgroundRefresher creates a new background refresher.
// Follows Dependency Injection - accepts dependencies via constructor.
func NewBackgroundRefresher(name string, interval time.Duration, job Job, logger *slog.Logger) *BackgroundRefresher {
	return &BackgroundRefresher{
		name:     name,
		job:      job,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start begins periodic refreshing, running the first job immediately.
// Non-blocking - launches goroutine and returns immediately.
func (r *BackgroundRefresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info("refresher starting", "name", r.name, "interval", r.interval)

	r.wg.Add(1)
	go r.refreshLoop(ctx)
}

// Stop gracefully stops the refresher, waiting for an in-flight run to finish.
func (r *BackgroundRefresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()
	r.logger.Info("refresher stopped", "name", r.name)
}

// Trigger requests an immediate run. Requests made while a run is in
// progress coalesce into a single follow-up run.
func (r *BackgroundRefresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// RunOnce executes the job synchronously. It waits for a run already in
// progress, so it never overlaps the loop started by Start.
func (r *BackgroundRefresher) RunOnce(ctx context.Context) error {
	return r.run(ctx)
}

func (r *BackgroundRefresher) refreshLoop(ctx context.Context) {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for ctx.Err() == nil {
		r.run(ctx)

		timer := time.NewTimer(r.interval)
		select {
		case <-timer.C:
		case <-r.trigger:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
		}
	}
}

func (r *BackgroundRefresher) run(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	startTime := time.Now()
	err := r.job(ctx)
	duration := time.Since(startTime)

	if err != nil {
		r.logger.Warn("refresh failed", "name", r.name, "error", err, "duration", duration.Round(time.Millisecond))
	} else {
		r.logger.Debug("refresh completed", "name", r.name, "duration", duration.Round(time.Millisecond))
	}
	if r.OnComplete != nil {
		r.OnComplete(err, duration)
	}
	return err
}
