package triage

import (
	"context"
	"log/slog"
	"time"

	"github.com/vilaca/triage-dashboard/internal/domain"
	"github.com/vilaca/triage-dashboard/internal/service"
)

// Source fetches open issues, leaving out the given classified ids.
type Source interface {
	FetchIssues(ctx context.Context, validIDs, invalidIDs []int64) (*domain.FetchResult, error)
}

// Result describes one finished poll.
type Result struct {
	Added    int
	Err      error
	Duration time.Duration
}

// Poller feeds a session from a source on a single-flight schedule.
// A failed poll leaves the session untouched.
type Poller struct {
	session   *Session
	source    Source
	refresher *service.BackgroundRefresher
	logger    *slog.Logger

	// OnResult, when set, observes every finished poll.
	OnResult func(Result)
}

// NewPoller creates a poller; interval is measured from the end of one poll
// to the start of the next.
func NewPoller(session *Session, source Source, interval time.Duration, logger *slog.Logger) *Poller {
	p := &Poller{
		session: session,
		source:  source,
		logger:  logger,
	}
	p.refresher = service.NewBackgroundRefresher("poll", interval, p.poll, logger)
	return p
}

// Start begins polling; the first poll runs immediately.
func (p *Poller) Start(ctx context.Context) {
	p.refresher.Start(ctx)
}

// Stop halts polling and waits for an in-flight poll.
func (p *Poller) Stop() {
	p.refresher.Stop()
}

// Trigger asks for a poll now. It coalesces with one already running.
func (p *Poller) Trigger() {
	p.refresher.Trigger()
}

// PollOnce runs a single poll synchronously. It waits for a poll started by
// Start to finish first, so polls never overlap.
func (p *Poller) PollOnce(ctx context.Context) error {
	return p.refresher.RunOnce(ctx)
}

func (p *Poller) poll(ctx context.Context) error {
	startTime := time.Now()
	added, err := p.reconcile(ctx)
	if p.OnResult != nil {
		p.OnResult(Result{Added: added, Err: err, Duration: time.Since(startTime)})
	}
	return err
}

func (p *Poller) reconcile(ctx context.Context) (int, error) {
	validIDs, invalidIDs := p.session.ExcludedIDs()
	result, err := p.source.FetchIssues(ctx, validIDs, invalidIDs)
	if err != nil {
		return 0, err
	}

	added, err := p.session.Reconcile(result.Issues, result.IssuelessRepos)
	if err != nil {
		return added, err
	}
	p.logger.Info("reconciled poll",
		"fetched", len(result.Issues),
		"added", added,
		"issueless", len(result.IssuelessRepos),
	)
	return added, nil
}
