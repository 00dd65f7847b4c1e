// Package audit stores an anonymized trail of evaluations.
//
// A record describes what happened to an evaluation (domain, model, verdict,
// error code, timing) and never what was submitted: clinical input values are
// not part of the record type and cannot be written by any store.
package audit

import (
	"context"
	"io"
	"time"

	"github.com/clinical-risk-scorer/internal/domain"
)

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Record is one anonymized evaluation entry.
type Record struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"request_id,omitempty"`
	Domain       domain.Domain  `json:"domain"`
	ModelName    string         `json:"model_name,omitempty"`
	ModelVersion string         `json:"model_version,omitempty"`
	Backend      string         `json:"backend,omitempty"`
	Outcome      string         `json:"outcome"`
	Verdict      domain.Verdict `json:"verdict,omitempty"`
	Label        *int           `json:"label,omitempty"`
	LabRiskScore *int           `json:"lab_risk_score,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	CacheHit     bool           `json:"cache_hit"`
	DurationMs   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filter narrows List. Zero values do not filter.
type Filter struct {
	Domain  domain.Domain
	Outcome string
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}

// Page sizes for List. DefaultListLimit applies when Filter.Limit is zero;
// callers paging on behalf of clients cap requests at MaxListLimit.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// EffectiveLimit returns the page size to use.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Stats summarizes the trail.
type Stats struct {
	Total         int64            `json:"total"`
	Errors        int64            `json:"errors"`
	CacheHits     int64            `json:"cache_hits"`
	ByDomain      map[string]int64 `json:"by_domain"`
	ByVerdict     map[string]int64 `json:"by_verdict"`
	AvgDurationMs float64          `json:"avg_duration_ms"`
}

// Export is the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}

// Store defines the interface for audit storage operations.
type Store interface {
	// Record appends an entry. ID and CreatedAt are filled in when empty.
	Record(ctx context.Context, rec *Record) error

	// Get returns the entry with the given ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns entries newest first.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	Stats(ctx context.Context) (*Stats, error)

	// ExportJSON writes every entry to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Purge deletes entries created before olderThan and returns how many
	// were removed.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)

	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

func newStats() *Stats {
	return &Stats{
		ByDomain:  make(map[string]int64),
		ByVerdict: make(map[string]int64),
	}
}
