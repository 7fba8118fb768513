// Package store persists finished runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path is the database location given to Open.
func (s *Store) Path() string { return s.path }

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    scope_id      TEXT NOT NULL,
    site_name     TEXT NOT NULL,
    mode          TEXT NOT NULL CHECK(mode IN ('markup','spa','framework')),
    root_prompt   TEXT NOT NULL,
    success       BOOLEAN NOT NULL,
    quality_score INTEGER NOT NULL,
    warnings      TEXT NOT NULL DEFAULT '[]',
    errors        TEXT NOT NULL DEFAULT '[]',
    created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

CREATE TABLE IF NOT EXISTS run_files (
    run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name     TEXT NOT NULL,
    content  TEXT NOT NULL,
    PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS run_pages (
    run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    filename TEXT NOT NULL,
    state    TEXT NOT NULL,
    attempts INTEGER NOT NULL,
    score    INTEGER NOT NULL,
    PRIMARY KEY (run_id, filename)
);
`

// Migrate applies the database schema. It is a no-op on a migrated database.
func (s *Store) Migrate(ctx context.Context) error {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// File is one generated file in output order.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Page is the final state of one page.
type Page struct {
	Filename string `json:"filename"`
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Score    int    `json:"score"`
}

// Run is a persisted run. Files and Pages are empty in listings.
type Run struct {
	ID           string    `json:"id"`
	ScopeID      string    `json:"scopeId"`
	SiteName     string    `json:"siteName"`
	Mode         string    `json:"mode"`
	RootPrompt   string    `json:"rootPrompt"`
	Success      bool      `json:"success"`
	QualityScore int       `json:"qualityScore"`
	Warnings     []string  `json:"warnings"`
	Errors       []string  `json:"errors"`
	CreatedAt    time.Time `json:"createdAt"`
	Files        []File    `json:"files,omitempty"`
	Pages        []Page    `json:"pages,omitempty"`
}

// SaveRun stores r with its files and pages in one transaction and returns
// its id. An empty ID gets a new UUID; a zero CreatedAt gets the current time.
func (s *Store) SaveRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	warnings, err := json.Marshal(nonNil(r.Warnings))
	if err != nil {
		return "", fmt.Errorf("encode warnings: %w", err)
	}
	errs, err := json.Marshal(nonNil(r.Errors))
	if err != nil {
		return "", fmt.Errorf("encode errors: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, scope_id, site_name, mode, root_prompt, success, quality_score, warnings, errors, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ScopeID, r.SiteName, r.Mode, r.RootPrompt, r.Success, r.QualityScore, string(warnings), string(errs), r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	for i, f := range r.Files {
		if _, err := tx.ExecContext(ctx, "INSERT INTO run_files (run_id, position, name, content) VALUES (?, ?, ?, ?)", r.ID, i, f.Name, f.Content); err != nil {
			return "", fmt.Errorf("insert file %s: %w", f.Name, err)
		}
	}
	for _, p := range r.Pages {
		if _, err := tx.ExecContext(ctx, "INSERT INTO run_pages (run_id, filename, state, attempts, score) VALUES (?, ?, ?, ?, ?)", r.ID, p.Filename, p.State, p.Attempts, p.Score); err != nil {
			return "", fmt.Errorf("insert page %s: %w", p.Filename, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return r.ID, nil
}

const runColumns = "id, scope_id, site_name, mode, root_prompt, success, quality_score, warnings, errors, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                  Run
		warnings, errs, ts string
	)
	if err := row.Scan(&r.ID, &r.ScopeID, &r.SiteName, &r.Mode, &r.RootPrompt, &r.Success, &r.QualityScore, &warnings, &errs, &ts); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
		return Run{}, fmt.Errorf("decode warnings: %w", err)
	}
	if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
		return Run{}, fmt.Errorf("decode errors: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	return r, nil
}

// GetRun loads a run with its files and pages.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.conn.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT name, content FROM run_files WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return Run{}, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Name, &f.Content); err != nil {
			return Run{}, fmt.Errorf("scan file: %w", err)
		}
		r.Files = append(r.Files, f)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	prow, err := s.conn.QueryContext(ctx, "SELECT filename, state, attempts, score FROM run_pages WHERE run_id = ? ORDER BY rowid", id)
	if err != nil {
		return Run{}, fmt.Errorf("query pages: %w", err)
	}
	defer prow.Close()
	for prow.Next() {
		var p Page
		if err := prow.Scan(&p.Filename, &p.State, &p.Attempts, &p.Score); err != nil {
			return Run{}, fmt.Errorf("scan page: %w", err)
		}
		r.Pages = append(r.Pages, p)
	}
	return r, prow.Err()
}

// ListRuns returns the most recent runs first, without files or pages.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its files and pages.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
