package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinical-risk-scorer/internal/audit"
	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/middleware"
)

// EvaluateRequest is the body of the evaluate and report endpoints.
type EvaluateRequest struct {
	Inputs       domain.ClinicalInputSet `json:"inputs" binding:"required"`
	SymptomScore *int                    `json:"symptom_score,omitempty"`
}

func (r *EvaluateRequest) options(requestID string) domain.EvaluationOptions {
	return domain.EvaluationOptions{SymptomScore: r.SymptomScore, RequestID: requestID}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks, healthy := s.evaluator.Health(c.Request.Context())

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

func (s *Server) handleListDomains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"domains": s.evaluator.Domains()})
}

func (s *Server) handleDescribeDomain(c *gin.Context) {
	d, err := domain.ParseDomain(c.Param("domain"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	info, err := s.evaluator.Describe(d)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleEvaluate runs one evaluation. Evaluation failures are returned with
// the status of their error code.
func (s *Server) handleEvaluate(c *gin.Context) {
	d, err := domain.ParseDomain(c.Param("domain"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortInvalid(c, "invalid request body", err)
		return
	}

	eval, err := s.evaluator.Evaluate(c.Request.Context(), d, req.Inputs, req.options(c.GetString(middleware.RequestIDKey)))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, eval)
}

// handleThyroidReport returns the plain-text report summary, or the printable
// report lines with ?format=lines.
func (s *Server) handleThyroidReport(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortInvalid(c, "invalid request body", err)
		return
	}

	report, err := s.evaluator.ThyroidReport(c.Request.Context(), req.Inputs, req.options(c.GetString(middleware.RequestIDKey)))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	switch c.DefaultQuery("format", "text") {
	case "lines":
		c.JSON(http.StatusOK, gin.H{"lines": report.PDFLines})
	case "text":
		c.Header("Content-Disposition", `inline; filename="thyroid_report.txt"`)
		c.String(http.StatusOK, report.Summary)
	default:
		s.abortInvalid(c, "invalid query", fmt.Errorf("unknown format %q", c.Query("format")))
	}
}

func (s *Server) auditStore(c *gin.Context) (audit.Store, bool) {
	store := s.evaluator.AuditStore()
	if store == nil {
		s.abortWithError(c, fmt.Errorf("audit trail is disabled: %w", domain.ErrNotFound))
		return nil, false
	}
	return store, true
}

func (s *Server) handleAuditStats(c *gin.Context) {
	store, ok := s.auditStore(c)
	if !ok {
		return
	}

	stats, err := store.Stats(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleAuditRecords(c *gin.Context) {
	store, ok := s.auditStore(c)
	if !ok {
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		s.abortInvalid(c, "invalid query", err)
		return
	}

	records, err := store.List(c.Request.Context(), filter)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"limit":   filter.EffectiveLimit(),
		"offset":  filter.Offset,
	})
}

func (s *Server) handleAuditRecord(c *gin.Context) {
	store, ok := s.auditStore(c)
	if !ok {
		return
	}

	rec, err := store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// parseFilter reads domain, outcome, since, until (RFC 3339), limit and
// offset from the query string.
func parseFilter(c *gin.Context) (audit.Filter, error) {
	var f audit.Filter

	if v := c.Query("domain"); v != "" {
		d, err := domain.ParseDomain(v)
		if err != nil {
			return f, err
		}
		f.Domain = d
	}

	switch v := strings.ToLower(c.Query("outcome")); v {
	case "", audit.OutcomeSuccess, audit.OutcomeError:
		f.Outcome = v
	default:
		return f, fmt.Errorf("unknown outcome %q", v)
	}

	for name, into := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := c.Query(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("%s: %w", name, err)
			}
			*into = t
		}
	}

	for name, into := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := c.Query(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, fmt.Errorf("%s must be a non-negative integer", name)
			}
			*into = n
		}
	}
	if f.Limit > audit.MaxListLimit {
		f.Limit = audit.MaxListLimit
	}

	return f, nil
}
