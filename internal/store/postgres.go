package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// PostgresStore persists documents in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects using a postgres:// URL and installs the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.install(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) install(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS triage_issues (
    seq BIGSERIAL PRIMARY KEY,
    id VARCHAR(64) NOT NULL UNIQUE,
    status VARCHAR(16) NOT NULL,
    document JSONB NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("install postgres schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertIfAbsent(ctx context.Context, issue domain.Issue) (bool, error) {
	doc, err := encodeDocument(issue)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO triage_issues(id, status, document)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`, issue.Key(), string(domain.StatusUnmarked), doc)
	if err != nil {
		return false, fmt.Errorf("insert issue %s: %w", issue.Key(), err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE triage_issues SET status = $1 WHERE id = $2
RETURNING status, document::text`, string(status), id)
	return scanPostgres(row, id)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Issue, error) {
	row := s.pool.QueryRow(ctx, `SELECT status, document::text FROM triage_issues WHERE id = $1`, id)
	return scanPostgres(row, id)
}

func scanPostgres(row pgx.Row, id string) (*domain.Issue, error) {
	var status, document string
	err := row.Scan(&status, &document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read issue %s: %w", id, err)
	}
	return decodeDocument([]byte(document), status)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]domain.Issue, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, document::text FROM triage_issues ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	all := make([]domain.Issue, 0)
	for rows.Next() {
		var status, document string
		if err := rows.Scan(&status, &document); err != nil {
			return nil, err
		}
		issue, err := decodeDocument([]byte(document), status)
		if err != nil {
			return nil, err
		}
		all = append(all, *issue)
	}
	return all, rows.Err()
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE triage_issues`); err != nil {
		return fmt.Errorf("reset issues: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
