package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// SQLiteStore persists documents in a SQLite database file.
type SQLiteStore struct {
	connection *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and installs the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "triage.db"
	}
	r := &url.URL{Scheme: "file", Opaque: path}
	q := r.Query()
	q.Set("cache", "shared")
	q.Set("mode", "rwc")
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	r.RawQuery = q.Encode()

	db, err := sql.Open("sqlite3", r.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s := &SQLiteStore{connection: db}
	if err := s.install(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) install(ctx context.Context) error {
	_, err := s.connection.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS triage_issues (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    document TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("install sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertIfAbsent(ctx context.Context, issue domain.Issue) (bool, error) {
	doc, err := encodeDocument(issue)
	if err != nil {
		return false, err
	}
	res, err := s.connection.ExecContext(ctx, `
INSERT INTO triage_issues(id, status, document)
VALUES (?, ?, ?)
ON CONFLICT(id) DO NOTHING`, issue.Key(), string(domain.StatusUnmarked), doc)
	if err != nil {
		return false, fmt.Errorf("insert issue %s: %w", issue.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Issue, error) {
	res, err := s.connection.ExecContext(ctx, `UPDATE triage_issues SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return nil, fmt.Errorf("update issue %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Issue, error) {
	row := s.connection.QueryRowContext(ctx, `SELECT status, document FROM triage_issues WHERE id = ?`, id)
	var status, document string
	err := row.Scan(&status, &document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", id, err)
	}
	return decodeDocument([]byte(document), status)
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]domain.Issue, error) {
	rows, err := s.connection.QueryContext(ctx, `SELECT status, document FROM triage_issues ORDER BY seq ASC`)
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

func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.connection.ExecContext(ctx, `DELETE FROM triage_issues`); err != nil {
		return fmt.Errorf("reset issues: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.connection.Close()
}
