package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/audit"
	"github.com/clinical-risk-scorer/internal/domain"
)

const auditColumns = `id, request_id, domain, model_name, model_version, backend,
	outcome, verdict, label, lab_risk_score, error_code, cache_hit, duration_ms, created_at`

// AuditRepository stores the anonymized evaluation trail in PostgreSQL.
type AuditRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

var _ audit.Store = (*AuditRepository)(nil)

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: logger,
	}
}

// Record inserts an audit entry
func (r *AuditRepository) Record(ctx context.Context, rec *audit.Record) error {
	audit.Prepare(rec)

	if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("audit record id %q is not a UUID: %w", rec.ID, err)
	}

	query := `
		INSERT INTO evaluation_audit (
			id, request_id, domain, model_name, model_version, backend,
			outcome, verdict, label, lab_risk_score, error_code, cache_hit,
			duration_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.RequestID,
		string(rec.Domain),
		rec.ModelName,
		rec.ModelVersion,
		rec.Backend,
		rec.Outcome,
		string(rec.Verdict),
		rec.Label,
		rec.LabRiskScore,
		rec.ErrorCode,
		rec.CacheHit,
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"audit_id": rec.ID,
			"domain":   rec.Domain,
			"error":    err,
		}).Error("Failed to create audit record")
		return fmt.Errorf("creating audit record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"audit_id": rec.ID,
		"domain":   rec.Domain,
		"outcome":  rec.Outcome,
	}).Debug("Audit record created")

	return nil
}

func scanAudit(row pgx.Row) (*audit.Record, error) {
	var rec audit.Record
	var d, verdict string

	err := row.Scan(
		&rec.ID,
		&rec.RequestID,
		&d,
		&rec.ModelName,
		&rec.ModelVersion,
		&rec.Backend,
		&rec.Outcome,
		&verdict,
		&rec.Label,
		&rec.LabRiskScore,
		&rec.ErrorCode,
		&rec.CacheHit,
		&rec.DurationMs,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Domain = domain.Domain(d)
	rec.Verdict = domain.Verdict(verdict)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// Get retrieves an audit entry by its ID
func (r *AuditRepository) Get(ctx context.Context, id string) (*audit.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("audit record %s: %w", id, domain.ErrNotFound)
	}

	query := `SELECT ` + auditColumns + ` FROM evaluation_audit WHERE id = $1`

	rec, err := scanAudit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audit record %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"audit_id": id,
			"error":    err,
		}).Error("Failed to get audit record by ID")
		return nil, fmt.Errorf("getting audit record by ID: %w", err)
	}

	return rec, nil
}

// List retrieves audit entries newest first
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]*audit.Record, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Domain != "" {
		add("domain = $%d", string(filter.Domain))
	}
	if filter.Outcome != "" {
		add("outcome = $%d", filter.Outcome)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at < $%d", filter.Until)
	}

	query := `SELECT ` + auditColumns + ` FROM evaluation_audit`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.EffectiveLimit(), filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithError(err).Error("Failed to list audit records")
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var records []*audit.Record
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return records, nil
}

// Count returns the number of audit entries
func (r *AuditRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM evaluation_audit`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting audit records: %w", err)
	}
	return count, nil
}

// Stats aggregates the audit trail
func (r *AuditRepository) Stats(ctx context.Context) (*audit.Stats, error) {
	stats := &audit.Stats{
		ByDomain:  make(map[string]int64),
		ByVerdict: make(map[string]int64),
	}

	var avg *float64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'error'),
			COUNT(*) FILTER (WHERE cache_hit),
			AVG(duration_ms)::float8
		FROM evaluation_audit`).Scan(&stats.Total, &stats.Errors, &stats.CacheHits, &avg)
	if err != nil {
		return nil, fmt.Errorf("querying audit totals: %w", err)
	}
	if avg != nil {
		stats.AvgDurationMs = *avg
	}

	for column, into := range map[string]map[string]int64{
		"domain":  stats.ByDomain,
		"verdict": stats.ByVerdict,
	} {
		rows, err := r.db.Query(ctx,
			"SELECT "+column+", COUNT(*) FROM evaluation_audit WHERE "+column+" <> '' GROUP BY "+column)
		if err != nil {
			return nil, fmt.Errorf("grouping audit records by %s: %w", column, err)
		}
		for rows.Next() {
			var key string
			var n int64
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning %s count: %w", column, err)
			}
			into[key] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating %s counts: %w", column, err)
		}
	}

	return stats, nil
}

// ExportJSON writes every audit entry to writer
func (r *AuditRepository) ExportJSON(ctx context.Context, writer io.Writer) error {
	records, err := r.List(ctx, audit.Filter{Limit: 1000000})
	if err != nil {
		return err
	}
	return audit.WriteExport(writer, records)
}

// Purge deletes entries created before olderThan
func (r *AuditRepository) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM evaluation_audit WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purging audit records: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"older_than": olderThan,
		"removed":    tag.RowsAffected(),
	}).Info("Audit records purged")

	return tag.RowsAffected(), nil
}

// Ping checks the pool
func (r *AuditRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close is a no-op; the pool belongs to the caller.
func (r *AuditRepository) Close() error {
	return nil
}
