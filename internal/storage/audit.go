package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// CallRecord is one stored IVR call.
type CallRecord struct {
	ID         string
	RequestID  string
	Action     string
	Code       string
	Message    string
	Count      int
	Retried    bool
	Period     string
	DurationMs int64
	OccurredAt time.Time
}

// AuditFilter narrows ListCalls. Zero fields match everything.
type AuditFilter struct {
	Action string
	Since  time.Time
	Limit  int
}

// ActionSummary aggregates the calls of one action.
type ActionSummary struct {
	Action      string
	Calls       int64
	Retried     int64
	AvgDuration float64
}

const defaultListLimit = 50

// AuditRepository stores call audit records in SQLite.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(dbPath string) (*AuditRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &AuditRepository{db: db}, nil
}

func (r *AuditRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *AuditRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveCall stores a record. Redelivered records with a known id are ignored.
func (r *AuditRepository) SaveCall(ctx context.Context, rec CallRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO call_audit (id, request_id, action, code, message, count, retried, period, duration_ms, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		rec.ID, rec.RequestID, rec.Action, rec.Code, rec.Message, rec.Count,
		boolToInt(rec.Retried), rec.Period, rec.DurationMs, rec.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert call audit: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		slog.DebugContext(ctx, "Duplicate call audit ignored", "id", rec.ID)
	}
	return nil
}

// ListCalls returns the most recent records first.
func (r *AuditRepository) ListCalls(ctx context.Context, f AuditFilter) ([]CallRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT id, request_id, action, code, message, count, retried, period, duration_ms, occurred_at
		FROM call_audit WHERE 1=1`
	var args []any
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, f.Since.UTC())
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list call audit: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var rec CallRecord
		var retried int
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Action, &rec.Code, &rec.Message,
			&rec.Count, &retried, &rec.Period, &rec.DurationMs, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan call audit: %w", err)
		}
		rec.Retried = retried != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary aggregates calls per action since a point in time.
func (r *AuditRepository) Summary(ctx context.Context, since time.Time) ([]ActionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action, COUNT(*), COALESCE(SUM(retried), 0), COALESCE(AVG(duration_ms), 0)
		FROM call_audit
		WHERE occurred_at >= ?
		GROUP BY action
		ORDER BY action`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("summarize call audit: %w", err)
	}
	defer rows.Close()

	var out []ActionSummary
	for rows.Next() {
		var s ActionSummary
		if err := rows.Scan(&s.Action, &s.Calls, &s.Retried, &s.AvgDuration); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneBefore deletes records older than cutoff and reports how many went.
func (r *AuditRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM call_audit WHERE occurred_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune call audit: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
