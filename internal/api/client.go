package api

import (
	"context"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// OrgClient defines the upstream operations needed to triage an organization.
// Consumers depend on this interface, not on a concrete platform client.
type OrgClient interface {
	// ListTeams returns every team of the organization.
	ListTeams(ctx context.Context, org string) ([]domain.Team, error)

	// ListTeamMembers returns the members of one team.
	ListTeamMembers(ctx context.Context, org, teamSlug string) ([]domain.Member, error)

	// ListRepositories returns every repository of the organization.
	ListRepositories(ctx context.Context, org string) ([]domain.Repository, error)

	// ListOpenIssues returns the open issues of one repository.
	// ReporterTeam is left empty; team resolution is the caller's job.
	ListOpenIssues(ctx context.Context, org, repo string) ([]domain.Issue, error)
}

// ClientConfig holds common configuration for API clients.
type ClientConfig struct {
	BaseURL string
	Token   string

	// MaxConcurrentRequests bounds in-flight requests. Zero uses the default.
	MaxConcurrentRequests int
	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
}
