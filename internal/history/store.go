// Package history persists finished runs in a DuckDB database.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
)

// DefaultLimit is the number of records Recent returns when limit <= 0.
const DefaultLimit = 20

// Store is a DuckDB-backed run log.
type Store struct {
	db   *sql.DB
	path string
	log  logger.Logger
}

// Open opens or creates the database at path.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Warnf("pragma %q: %v", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          VARCHAR PRIMARY KEY,
			mode        VARCHAR NOT NULL,
			status      VARCHAR NOT NULL,
			started_at  TIMESTAMP NOT NULL,
			duration_ms BIGINT NOT NULL,
			summary     VARCHAR,
			reports     VARCHAR,
			error       VARCHAR
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	log.Infof("history database ready at %s", path)
	return &Store{db: db, path: path, log: log}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Record inserts or replaces a run record.
func (s *Store) Record(ctx context.Context, rec *models.RunRecord) error {
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	reports := rec.Reports
	if reports == nil {
		reports = []string{}
	}
	reportsJSON, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("encoding reports: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, mode, status, started_at, duration_ms, summary, reports, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Mode), string(rec.Status), rec.StartedAt.UTC(), rec.DurationMs,
		string(summary), string(reportsJSON), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", rec.ID, err)
	}
	return nil
}

// Observe records a finished run.
func (s *Store) Observe(ctx context.Context, rec *models.RunRecord) error {
	return s.Record(ctx, rec)
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, status, started_at, duration_ms, summary, reports, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.RunRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one record or ErrRunNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, status, started_at, duration_ms, summary, reports, error
		FROM runs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (models.RunRecord, error) {
	var (
		rec              models.RunRecord
		mode, status     string
		started          time.Time
		summary, reports sql.NullString
		errMsg           sql.NullString
	)
	if err := row.Scan(&rec.ID, &mode, &status, &started, &rec.DurationMs, &summary, &reports, &errMsg); err != nil {
		return rec, err
	}
	rec.Mode = models.Mode(mode)
	rec.Status = models.RunStatus(status)
	rec.StartedAt = started
	rec.Error = errMsg.String

	rec.Summary = models.ReportSummary{}
	if summary.Valid && summary.String != "" && summary.String != "null" {
		if err := json.Unmarshal([]byte(summary.String), &rec.Summary); err != nil {
			return rec, fmt.Errorf("decoding summary of %s: %w", rec.ID, err)
		}
	}
	rec.Reports = []string{}
	if reports.Valid && reports.String != "" {
		if err := json.Unmarshal([]byte(reports.String), &rec.Reports); err != nil {
			return rec, fmt.Errorf("decoding reports of %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}
