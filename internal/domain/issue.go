package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Defaults applied when upstream data does not resolve a reporter.
const (
	UnknownReporter = "Unknown"
	UnknownTeam     = "Unknown Team"
)

// ErrInvalidStatus is returned when a triage status is not recognised.
var ErrInvalidStatus = errors.New("invalid status")

// Status is the triage classification of an issue.
type Status string

const (
	StatusUnmarked Status = "UNMARKED"
	StatusValid    Status = "VALID"
	StatusInvalid  Status = "INVALID"
)

// ParseStatus converts a client-supplied string into a Status.
// Matching is case-insensitive; surrounding whitespace is ignored.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusUnmarked:
		return StatusUnmarked, nil
	case StatusValid:
		return StatusValid, nil
	case StatusInvalid:
		return StatusInvalid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// IsVerdict reports whether the status is a human classification.
func (s Status) IsVerdict() bool {
	return s == StatusValid || s == StatusInvalid
}

// Issue is an open issue from an organization repository.
// Status is only meaningful once the issue has been persisted by a triage store.
type Issue struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Body         string `json:"body,omitempty"`
	Reporter     string `json:"reporter"`
	ReporterTeam string `json:"reporterTeam"`
	Repo         string `json:"repo"`
	URL          string `json:"url"`
	State        string `json:"state"`
	CreatedAt    string `json:"createdAt"`
	Status       Status `json:"status,omitempty"`
}

// Key returns the document key used by triage stores.
func (i Issue) Key() string {
	return strconv.FormatInt(i.ID, 10)
}

// IssuelessRepo names a repository that had no open issues at the last poll.
type IssuelessRepo struct {
	Name string `json:"name"`
}

// FetchResult is the normalized output of one upstream poll.
type FetchResult struct {
	Issues         []Issue         `json:"issues"`
	IssuelessRepos []IssuelessRepo `json:"issuelessRepos"`
}
