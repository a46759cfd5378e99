// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdf-harvest/pkg/types"
)

// HistoryDir and HistoryFile locate the default history database inside
// the destination directory.
const (
	HistoryDir  = ".pdf-harvest"
	HistoryFile = "history.db"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoRuns is returned when the history holds no runs.
var ErrNoRuns = errors.New("no runs recorded")

// DefaultHistoryPath returns the history database path for destDir.
func DefaultHistoryPath(destDir string) string {
	return filepath.Join(destDir, HistoryDir, HistoryFile)
}

// Store is the SQLite run history. Every run and every per-URL record is
// kept, so failed URLs of an earlier run can be listed and retried.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the history database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			dest_dir TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			url TEXT NOT NULL,
			file_name TEXT,
			method TEXT,
			http_status INTEGER,
			byte_count INTEGER,
			success INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_url ON records(url)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, destDir string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dest_dir, started_at) VALUES (?, ?, ?)`,
		id, destDir, startedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// Save stores the record of the URL at position idx of the run.
func (s *Store) Save(ctx context.Context, runID string, idx int, rec types.ReportRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records
			(run_id, idx, url, file_name, method, http_status, byte_count, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, idx, rec.URL, rec.FileName, string(rec.Method),
		rec.HTTPStatus, rec.ByteCount, rec.Success, rec.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("inserting record %d of run %s: %w", idx, runID, err)
	}
	return nil
}

// FinishRun stores the totals of a completed (or interrupted) run.
func (s *Store) FinishRun(ctx context.Context, sum types.RunSummary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, bytes = ? WHERE id = ?`,
		sum.FinishedAt.UTC().Format(timeLayout), sum.Succeeded, sum.Failed, sum.Bytes, sum.RunID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", sum.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", sum.RunID)
	}
	return nil
}

// Runs returns up to limit runs, newest first. A limit of 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]types.RunSummary, error) {
	query := `SELECT id, dest_dir, started_at, COALESCE(finished_at, ''), succeeded, failed, bytes
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunSummary
	for rows.Next() {
		var r types.RunSummary
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.DestDir, &started, &finished, &r.Succeeded, &r.Failed, &r.Bytes); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(timeLayout, finished)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	for i := range runs {
		if runs[i].ByMethod, err = s.methodCounts(ctx, runs[i].RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) methodCounts(ctx context.Context, runID string) (map[types.Method]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT method, count(*) FROM records WHERE run_id = ? AND success = 1 GROUP BY method`, runID)
	if err != nil {
		return nil, fmt.Errorf("counting methods of run %s: %w", runID, err)
	}
	defer rows.Close()

	counts := make(map[types.Method]int)
	for rows.Next() {
		var m string
		var n int
		if err := rows.Scan(&m, &n); err != nil {
			return nil, fmt.Errorf("scanning method count: %w", err)
		}
		counts[types.Method(m)] = n
	}
	return counts, rows.Err()
}

// LatestRunID returns the ID of the most recently started run.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return id, nil
}

// Records returns the records of a run in input order.
func (s *Store) Records(ctx context.Context, runID string) ([]types.ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, COALESCE(file_name, ''), COALESCE(method, ''), COALESCE(http_status, 0),
			COALESCE(byte_count, 0), success, COALESCE(error, '')
		FROM records WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying records of run %s: %w", runID, err)
	}
	defer rows.Close()

	var recs []types.ReportRecord
	for rows.Next() {
		var r types.ReportRecord
		var method string
		if err := rows.Scan(&r.URL, &r.FileName, &method, &r.HTTPStatus, &r.ByteCount, &r.Success, &r.ErrorText); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Method = types.Method(method)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return recs, nil
}

// FailedURLs returns the URLs of a run that produced no file, in input
// order.
func (s *Store) FailedURLs(ctx context.Context, runID string) ([]string, error) {
	recs, err := s.Records(ctx, runID)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, r := range recs {
		if !r.Success {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}
