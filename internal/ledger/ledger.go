// Package ledger provides the durable, deduplicated record of citation
// alerts and their notification status.
//
// Every row is keyed by (pmid, detection_period): re-detecting the same
// article within one period is a silent no-op, while the same article may
// be recorded again under a later period. The notified flag transitions
// false to true exactly once, after the digest containing the row has been
// delivered. Rows are never deleted.
//
// Storage failures are fatal for the current run; there is no retry policy
// at this layer.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/retinalab/citation-alert-service/internal/database"
	"github.com/retinalab/citation-alert-service/internal/domain"
)

// createTableSQL mirrors migrations/000001_create_alerts.up.sql so that
// Initialize is safe without the migrations directory present.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS alerts (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    pmid             TEXT    NOT NULL,
    doi              TEXT,
    title            TEXT    NOT NULL DEFAULT '',
    journal          TEXT    NOT NULL DEFAULT '',
    published_date   TEXT    NOT NULL DEFAULT '',
    citation_count   INTEGER NOT NULL,
    detection_period TEXT    NOT NULL,
    notified         INTEGER NOT NULL DEFAULT 0,
    UNIQUE (pmid, detection_period)
);
`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_alerts_pending
    ON alerts (detection_period, notified);
`

// Ledger records alert detections in SQLite.
//
// Each method acquires the database connection for the duration of the call
// and releases it before returning; no connection is held across operations.
type Ledger struct {
	db     *database.DB
	logger zerolog.Logger
}

// New creates a ledger over an open database.
func New(db *database.DB, logger zerolog.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Initialize ensures the alerts schema exists. It is idempotent and safe to
// call on every run.
func (l *Ledger) Initialize(ctx context.Context) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize alerts schema: %w", err)
		}
	}

	l.logger.Debug().Msg("alerts schema ready")
	return nil
}

// Insert records a new alert with notified=false and returns true. When a
// row with the same (pmid, detection period) already exists it performs no
// write and returns false; duplicates are policy, not errors.
func (l *Ledger) Insert(ctx context.Context, rec *domain.AlertRecord) (bool, error) {
	if rec == nil {
		return false, domain.NewValidationError("record", "record cannot be nil")
	}
	if rec.PMID == "" {
		return false, domain.NewValidationError("pmid", "pmid is required")
	}
	if rec.DetectionPeriod == "" {
		return false, domain.NewValidationError("detection_period", "detection period is required")
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Check-then-insert; a single writer per run is assumed. The UNIQUE
	// constraint backstops the check.
	var existingID int64
	err = conn.QueryRowContext(ctx,
		`SELECT id FROM alerts WHERE pmid = ? AND detection_period = ?`,
		rec.PMID, rec.DetectionPeriod,
	).Scan(&existingID)

	switch {
	case err == nil:
		l.logger.Debug().
			Str("pmid", rec.PMID).
			Str("detection_period", rec.DetectionPeriod).
			Int64("existing_id", existingID).
			Msg("duplicate alert skipped")
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to check for existing alert: %w", err)
	}

	res, err := conn.ExecContext(ctx,
		`INSERT INTO alerts
		     (pmid, doi, title, journal, published_date, citation_count, detection_period, notified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		rec.PMID, nullableString(rec.DOI), rec.Title, rec.Journal,
		rec.PublishedDate, rec.CitationCount, rec.DetectionPeriod,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read inserted alert id: %w", err)
	}
	rec.ID = id
	rec.Notified = false

	l.logger.Info().
		Str("pmid", rec.PMID).
		Int("citation_count", rec.CitationCount).
		Int64("id", id).
		Msg("alert recorded")
	return true, nil
}

// ListPending returns the unnotified alerts for a detection period, most
// cited first. Ties preserve insertion order.
func (l *Ledger) ListPending(ctx context.Context, detectionPeriod string) ([]domain.AlertRecord, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx,
		`SELECT id, pmid, COALESCE(doi, ''), title, journal, published_date,
		        citation_count, detection_period, notified
		 FROM alerts
		 WHERE detection_period = ? AND notified = 0
		 ORDER BY citation_count DESC, id ASC`,
		detectionPeriod,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending alerts: %w", err)
	}
	defer rows.Close()

	var records []domain.AlertRecord
	for rows.Next() {
		var rec domain.AlertRecord
		var notified int
		if err := rows.Scan(
			&rec.ID, &rec.PMID, &rec.DOI, &rec.Title, &rec.Journal,
			&rec.PublishedDate, &rec.CitationCount, &rec.DetectionPeriod, &notified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		rec.Notified = notified != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending alerts: %w", err)
	}

	return records, nil
}

// MarkNotified sets notified=true for exactly the given ids. An empty input
// is a no-op. Rows outside the id set are untouched.
func (l *Ledger) MarkNotified(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE alerts SET notified = 1 WHERE id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to mark alerts notified: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	l.logger.Info().
		Int("requested", len(ids)).
		Int64("updated", updated).
		Msg("alerts marked notified")
	return nil
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
