package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vilaca/triage-dashboard/internal/api"
	"github.com/vilaca/triage-dashboard/internal/domain"
)

// DefaultFetchConcurrency bounds the per-repository fan-out when none is configured.
const DefaultFetchConcurrency = api.MaxConcurrentRequests

// FetchStage identifies which organization-wide listing failed.
type FetchStage string

const (
	StageTeams FetchStage = "teams"
	StageRepos FetchStage = "repos"
)

// FetchError is returned when an organization-wide listing fails.
// Such failures abort the whole fetch; per-team and per-repo failures do not.
type FetchError struct {
	Stage FetchStage
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IssueFetcher aggregates open issues of every repository in an organization.
// Follows Single Responsibility Principle - only orchestrates upstream listings.
type IssueFetcher struct {
	client      api.OrgClient
	concurrency int
	logger      *slog.Logger
}

// NewIssueFetcher creates a fetcher; concurrency <= 0 uses DefaultFetchConcurrency.
func NewIssueFetcher(client api.OrgClient, concurrency int, logger *slog.Logger) *IssueFetcher {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &IssueFetcher{
		client:      client,
		concurrency: concurrency,
		logger:      logger,
	}
}

// repoIssues holds one repository's issues before and after exclusion.
type repoIssues struct {
	full     []domain.Issue
	filtered []domain.Issue
}

// Fetch lists every open issue of org, skipping identifiers in exclude.
// A repository is issueless only when it has no open issues at all; one whose
// issues were all excluded contributes nothing.
func (f *IssueFetcher) Fetch(ctx context.Context, org string, exclude map[int64]struct{}) (*domain.FetchResult, error) {
	startTime := time.Now()

	teamByUser, err := f.reporterTeams(ctx, org)
	if err != nil {
		return nil, err
	}

	repos, err := f.client.ListRepositories(ctx, org)
	if err != nil {
		return nil, &FetchError{Stage: StageRepos, Err: err}
	}

	// Each goroutine owns one slot, so results need no locking.
	results := make([]repoIssues, len(repos))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.concurrency)

	for i, repo := range repos {
		group.Go(func() error {
			issues, err := f.client.ListOpenIssues(groupCtx, org, repo.Name)
			if err != nil {
				logSkip(f.logger, "repository", repo.Name, err)
				return nil
			}
			results[i] = normalize(issues, repo.Name, teamByUser, exclude)
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.FetchResult{
		Issues:         []domain.Issue{},
		IssuelessRepos: []domain.IssuelessRepo{},
	}
	for i, repo := range repos {
		switch {
		case len(results[i].filtered) > 0:
			result.Issues = append(result.Issues, results[i].filtered...)
		case len(results[i].full) == 0:
			result.IssuelessRepos = append(result.IssuelessRepos, domain.IssuelessRepo{Name: repo.Name})
		}
	}

	f.logger.Info("fetched organization issues",
		"org", org,
		"repos", len(repos),
		"issues", len(result.Issues),
		"issueless", len(result.IssuelessRepos),
		"excluded", len(exclude),
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
	return result, nil
}

// reporterTeams maps member logins to team names.
// Teams are walked in listing order, so a login in several teams maps to the last one.
func (f *IssueFetcher) reporterTeams(ctx context.Context, org string) (map[string]string, error) {
	teams, err := f.client.ListTeams(ctx, org)
	if err != nil {
		return nil, &FetchError{Stage: StageTeams, Err: err}
	}

	teamByUser := make(map[string]string)
	for _, team := range teams {
		members, err := f.client.ListTeamMembers(ctx, org, team.Slug)
		if err != nil {
			logSkip(f.logger, "team", team.Slug, err)
			continue
		}
		for _, m := range members {
			teamByUser[m.Login] = team.Name
		}
	}
	return teamByUser, nil
}

// logSkip records a per-item upstream failure that the fetch continues past.
func logSkip(logger *slog.Logger, kind, name string, err error) {
	switch {
	case api.IsNotFound(err):
		logger.Debug("skipping "+kind+": not found", kind, name)
	case api.IsRateLimited(err):
		logger.Warn("skipping "+kind+": rate limited", kind, name, "status", api.StatusCode(err))
	default:
		logger.Warn("skipping "+kind, kind, name, "error", err)
	}
}

// normalize stamps repo and team onto issues and applies the exclusion set.
func normalize(issues []domain.Issue, repo string, teamByUser map[string]string, exclude map[int64]struct{}) repoIssues {
	out := repoIssues{
		full:     make([]domain.Issue, 0, len(issues)),
		filtered: make([]domain.Issue, 0, len(issues)),
	}
	for _, issue := range issues {
		issue.Repo = repo
		if issue.Reporter == "" {
			issue.Reporter = domain.UnknownReporter
		}
		issue.ReporterTeam = domain.UnknownTeam
		if team, ok := teamByUser[issue.Reporter]; ok {
			issue.ReporterTeam = team
		}

		out.full = append(out.full, issue)
		if _, skip := exclude[issue.ID]; !skip {
			out.filtered = append(out.filtered, issue)
		}
	}
	return out
}
