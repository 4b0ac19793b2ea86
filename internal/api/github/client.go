package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vilaca/triage-dashboard/internal/api"
	"github.com/vilaca/triage-dashboard/internal/domain"
)

// Client implements api.OrgClient for the GitHub REST API.
// Follows Single Responsibility Principle - only handles GitHub API communication.
type Client struct {
	base *api.BaseClient
}

// NewClient creates a new GitHub client.
// Uses dependency injection for HTTPClient (IoC).
func NewClient(config api.ClientConfig, httpClient api.HTTPClient) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.github.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		base: api.NewBaseClient(config, httpClient),
	}
}

// Base exposes the underlying transport so callers can tune retry behaviour.
func (c *Client) Base() *api.BaseClient {
	return c.base
}

// ListTeams retrieves every team of the organization.
func (c *Client) ListTeams(ctx context.Context, org string) ([]domain.Team, error) {
	endpoint := fmt.Sprintf("%s/orgs/%s/teams?per_page=%d", c.base.BaseURL, url.PathEscape(org), api.DefaultPageSize)

	var ghTeams []githubTeam
	if err := collectPages(ctx, c, endpoint, &ghTeams); err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}

	teams := make([]domain.Team, 0, len(ghTeams))
	for _, t := range ghTeams {
		teams = append(teams, domain.Team{ID: t.ID, Name: t.Name, Slug: t.Slug})
	}
	return teams, nil
}

// ListTeamMembers retrieves the members of one team.
func (c *Client) ListTeamMembers(ctx context.Context, org, teamSlug string) ([]domain.Member, error) {
	endpoint := fmt.Sprintf("%s/orgs/%s/teams/%s/members?per_page=%d",
		c.base.BaseURL, url.PathEscape(org), url.PathEscape(teamSlug), api.DefaultPageSize)

	var ghUsers []githubUser
	if err := collectPages(ctx, c, endpoint, &ghUsers); err != nil {
		return nil, fmt.Errorf("failed to get members of team %s: %w", teamSlug, err)
	}

	members := make([]domain.Member, 0, len(ghUsers))
	for _, u := range ghUsers {
		members = append(members, domain.Member{Login: u.Login})
	}
	return members, nil
}

// ListRepositories retrieves every repository of the organization.
func (c *Client) ListRepositories(ctx context.Context, org string) ([]domain.Repository, error) {
	endpoint := fmt.Sprintf("%s/orgs/%s/repos?per_page=%d", c.base.BaseURL, url.PathEscape(org), api.DefaultPageSize)

	var ghRepos []githubRepository
	if err := collectPages(ctx, c, endpoint, &ghRepos); err != nil {
		return nil, fmt.Errorf("failed to get repositories: %w", err)
	}

	repos := make([]domain.Repository, 0, len(ghRepos))
	for _, r := range ghRepos {
		repos = append(repos, domain.Repository{
			ID:       r.ID,
			Name:     r.Name,
			FullName: r.FullName,
			WebURL:   r.HTMLURL,
		})
	}
	return repos, nil
}

// ListOpenIssues retrieves open issues of a repository.
// GitHub lists pull requests as issues; those are dropped.
func (c *Client) ListOpenIssues(ctx context.Context, org, repo string) ([]domain.Issue, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues?state=%s&per_page=%d",
		c.base.BaseURL, url.PathEscape(org), url.PathEscape(repo), domain.IssueStateOpen, api.DefaultPageSize)

	var ghIssues []githubIssue
	if err := collectPages(ctx, c, endpoint, &ghIssues); err != nil {
		return nil, fmt.Errorf("failed to get issues of %s: %w", repo, err)
	}

	issues := make([]domain.Issue, 0, len(ghIssues))
	for _, gi := range ghIssues {
		if gi.PullRequest != nil {
			continue
		}
		issues = append(issues, convertIssue(gi, repo))
	}
	return issues, nil
}

// collectPages follows Link rel="next" headers and appends every page into out.
func collectPages[T any](ctx context.Context, c *Client, endpoint string, out *[]T) error {
	for endpoint != "" {
		var page []T
		next, err := c.doRequest(ctx, endpoint, &page)
		if err != nil {
			return err
		}
		*out = append(*out, page...)
		endpoint = next
	}
	return nil
}

// doRequest performs an HTTP request to GitHub API and returns the next page URL.
func (c *Client) doRequest(ctx context.Context, endpoint string, result interface{}) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.base.Token))
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.base.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &api.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return parseLinkNext(resp.Header.Get("Link")), nil
}

// parseLinkNext extracts the rel="next" URL from an RFC 5988 Link header.
//
// Format: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkNext(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.SplitN(strings.TrimSpace(part), ";", 2)
		if len(segments) != 2 || !strings.Contains(segments[1], `rel="next"`) {
			continue
		}
		link := strings.TrimSpace(segments[0])
		if strings.HasPrefix(link, "<") && strings.HasSuffix(link, ">") {
			return link[1 : len(link)-1]
		}
	}
	return ""
}

// convertIssue converts a GitHub issue to domain model.
func convertIssue(gi githubIssue, repo string) domain.Issue {
	reporter := domain.UnknownReporter
	if gi.User != nil && gi.User.Login != "" {
		reporter = gi.User.Login
	}

	body := ""
	if gi.Body != nil {
		body = *gi.Body
	}

	return domain.Issue{
		ID:        gi.ID,
		Title:     gi.Title,
		Body:      body,
		Reporter:  reporter,
		Repo:      repo,
		URL:       gi.HTMLURL,
		State:     gi.State,
		CreatedAt: gi.CreatedAt,
	}
}

// GitHub API response types
type githubTeam struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type githubUser struct {
	Login string `json:"login"`
}

type githubRepository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type githubIssue struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Body        *string        `json:"body"`
	User        *githubUser    `json:"user"`
	HTMLURL     string         `json:"html_url"`
	State       string         `json:"state"`
	CreatedAt   string         `json:"created_at"`
	PullRequest *githubPullRef `json:"pull_request"`
}

type githubPullRef struct {
	URL string `json:"url"`
}
