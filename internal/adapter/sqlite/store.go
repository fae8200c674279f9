// Package sqlite keeps a history of analysis reports in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	success    BOOLEAN NOT NULL,
	records    INTEGER NOT NULL,
	report     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_created_at ON reports (created_at);
`

// Store persists reports. It implements pipeline.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open report db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create report schema: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Save inserts the report. Reports without an ID get a fresh UUID; saving an
// existing ID replaces the stored row.
func (s *Store) Save(ctx context.Context, report pipeline.Report) error {
	if report.ReportID == "" {
		report.ReportID = uuid.NewString()
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.ReportID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (id, created_at, success, records, report) VALUES (?, ?, ?, ?, ?)`,
		report.ReportID, s.now().UTC(), report.Success, report.RecordsProcessed, string(data))
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.ReportID, err)
	}
	s.logger.Debug("report saved", "report_id", report.ReportID)
	return nil
}

// Latest returns the most recently saved report. The bool is false when the
// store is empty.
func (s *Store) Latest(ctx context.Context) (pipeline.Report, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM reports ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Report{}, false, nil
	}
	if err != nil {
		return pipeline.Report{}, false, fmt.Errorf("query latest report: %w", err)
	}

	var report pipeline.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return pipeline.Report{}, false, fmt.Errorf("decode latest report: %w", err)
	}
	return report, true, nil
}

// Count returns the number of stored reports.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
