// Package store persists triage documents keyed by issue identifier.
//
// Each operation is atomic per document; there are no cross-document
// transactions, so an interrupted sync leaves a partial set that the next
// sync completes.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// ErrNotFound is returned when no document exists for an identifier.
var ErrNotFound = errors.New("issue not found")

// Store is a document store of triage records.
type Store interface {
	// UpsertIfAbsent creates the document with status UNMARKED unless one
	// already exists, in which case nothing changes. created reports which happened.
	UpsertIfAbsent(ctx context.Context, issue domain.Issue) (created bool, err error)

	// UpdateStatus merges status into an existing document and returns it.
	UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error)

	// Get returns one document.
	Get(ctx context.Context, id string) (*domain.Issue, error)

	// ListAll returns every document in insertion order.
	ListAll(ctx context.Context) ([]domain.Issue, error)

	// Reset deletes every document.
	Reset(ctx context.Context) error

	Close() error
}

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Open creates the store selected by driver. dsn is interpreted per driver:
// a file path for sqlite, a connection URL for postgres, an address for redis.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverRedis:
		return OpenRedis(ctx, dsn, logger)
	}
	return nil, fmt.Errorf("unsupported store driver %q", driver)
}

// newRecord prepares a document for first insertion.
func newRecord(issue domain.Issue) domain.Issue {
	issue.Status = domain.StatusUnmarked
	return issue
}
