package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/clinical-risk-scorer/internal/database"
	"github.com/clinical-risk-scorer/internal/domain"
)

const selectColumns = `id, request_id, domain, model_name, model_version, backend,
	outcome, verdict, label, lab_risk_score, error_code, cache_hit, duration_ms, created_at`

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens the audit database at dbPath, creating the file and
// applying the embedded migrations if needed.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := database.MigrateSQLite(ctx, dbPath, logger); err != nil {
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// NewSQLiteStoreWithDB wraps an already migrated handle.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	rec := &Record{}
	var d, verdict string
	var label, labScore sql.NullInt64
	var createdAt int64

	err := s.Scan(
		&rec.ID, &rec.RequestID, &d, &rec.ModelName, &rec.ModelVersion, &rec.Backend,
		&rec.Outcome, &verdict, &label, &labScore, &rec.ErrorCode, &rec.CacheHit,
		&rec.DurationMs, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Domain = domain.Domain(d)
	rec.Verdict = domain.Verdict(verdict)
	if label.Valid {
		rec.Label = IntPtr(int(label.Int64))
	}
	if labScore.Valid {
		rec.LabRiskScore = IntPtr(int(labScore.Int64))
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return rec, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// Prepare fills in the generated fields of rec.
func Prepare(rec *Record) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeSuccess
		if rec.ErrorCode != "" {
			rec.Outcome = OutcomeError
		}
	}
}

// Record appends an entry.
func (s *SQLiteStore) Record(ctx context.Context, rec *Record) error {
	Prepare(rec)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_audit (
			id, request_id, domain, model_name, model_version, backend,
			outcome, verdict, label, lab_risk_score, error_code, cache_hit,
			duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.RequestID,
		string(rec.Domain),
		rec.ModelName,
		rec.ModelVersion,
		rec.Backend,
		rec.Outcome,
		string(rec.Verdict),
		nullInt(rec.Label),
		nullInt(rec.LabRiskScore),
		rec.ErrorCode,
		rec.CacheHit,
		rec.DurationMs,
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Get retrieves one entry.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM evaluation_audit WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit record %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// whereClause renders the filter with ? placeholders.
func whereClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Domain != "" {
		conds = append(conds, "domain = ?")
		args = append(args, string(f.Domain))
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, f.Until.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns entries newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	where, args := whereClause(filter)
	args = append(args, filter.EffectiveLimit(), filter.Offset)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM evaluation_audit"+where+
			" ORDER BY created_at DESC, id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluation_audit").Scan(&count)
	return count, err
}

// Stats aggregates the trail.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := newStats()

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(cache_hit), 0),
			AVG(duration_ms)
		FROM evaluation_audit
	`).Scan(&stats.Total, &stats.Errors, &stats.CacheHits, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMs = avg.Float64
	}

	if err := s.groupCounts(ctx, "domain", stats.ByDomain); err != nil {
		return nil, err
	}
	if err := s.groupCounts(ctx, "verdict", stats.ByVerdict); err != nil {
		return nil, err
	}
	return stats, nil
}

// groupCounts fills into with per-value counts of column. Empty values are
// skipped.
func (s *SQLiteStore) groupCounts(ctx context.Context, column string, into map[string]int64) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM evaluation_audit WHERE "+column+" <> '' GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("failed to group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// ExportJSON exports every entry to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, Filter{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list audit records: %w", err)
	}
	return WriteExport(writer, all)
}

// Purge deletes entries older than the cutoff.
func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM evaluation_audit WHERE created_at < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge: %w", err)
	}
	return result.RowsAffected()
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteExport encodes records in the export format.
func WriteExport(writer io.Writer, records []*Record) error {
	if records == nil {
		records = []*Record{}
	}
	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(records),
		Records:    records,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
