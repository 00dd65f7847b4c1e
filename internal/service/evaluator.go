package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/audit"
	"github.com/clinical-risk-scorer/internal/cache"
	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/explain"
	"github.com/clinical-risk-scorer/internal/features"
	"github.com/clinical-risk-scorer/internal/model"
	"github.com/clinical-risk-scorer/internal/risk"
)

// MaxSymptomScore bounds the optional thyroid symptom score.
const MaxSymptomScore = 100

// DefaultEvaluationTimeout applies when Options.Timeout is zero.
const DefaultEvaluationTimeout = 10 * time.Second

// Options configures an Evaluator. Cache and Audit are optional.
type Options struct {
	Cache   *cache.PredictionCache
	Audit   audit.Store
	Timeout time.Duration
	Logger  *logrus.Logger
}

// Evaluator runs the evaluation pipeline: validate and order the inputs,
// invoke the domain classifier, derive the verdict and compose the
// explanation. Evaluations are independent and it is safe for concurrent use.
type Evaluator struct {
	builder  *features.Builder
	registry *model.Registry
	invoker  *model.Invoker
	composer *explain.Composer
	cache    *cache.PredictionCache
	audit    audit.Store
	timeout  time.Duration
	logger   *logrus.Logger
}

var _ domain.RiskEvaluator = (*Evaluator)(nil)

// NewEvaluator creates a new evaluator over a loaded registry
func NewEvaluator(registry *model.Registry, opts Options) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultEvaluationTimeout
	}
	return &Evaluator{
		builder:  features.NewBuilder(),
		registry: registry,
		invoker:  model.NewInvoker(logger),
		composer: explain.NewComposer(),
		cache:    opts.Cache,
		audit:    opts.Audit,
		timeout:  timeout,
		logger:   logger,
	}
}

// Registry returns the model registry the evaluator serves.
func (e *Evaluator) Registry() *model.Registry {
	return e.registry
}

// AuditStore returns the audit store, which may be nil.
func (e *Evaluator) AuditStore() audit.Store {
	return e.audit
}

// Evaluate runs one evaluation. Failures are returned as SchemaError,
// RangeError or InferenceError, wrapped in ErrEvaluationTimeout when the
// evaluation's own deadline expired; a failed evaluation produces no partial
// result.
func (e *Evaluator) Evaluate(ctx context.Context, d domain.Domain, inputs domain.ClinicalInputSet, opts domain.EvaluationOptions) (eval *domain.Evaluation, err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	trail := &audit.Record{RequestID: opts.RequestID, Domain: d}
	defer func() {
		trail.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			trail.ErrorCode = domain.CodeFor(err)
			e.logger.WithFields(logrus.Fields{
				"domain":     d,
				"error_code": trail.ErrorCode,
				"request_id": opts.RequestID,
			}).WithError(err).Warn("Evaluation failed")
		}
		e.record(ctx, trail)
	}()

	if err := validateSymptoms(d, opts); err != nil {
		return nil, err
	}

	rec, err := e.builder.Decode(d, inputs)
	if err != nil {
		return nil, err
	}
	vec, err := features.VectorOf(d, rec)
	if err != nil {
		return nil, err
	}

	h, err := e.registry.Lookup(d)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownDomain) {
			return nil, err
		}
		return nil, domain.NewInferenceError(d, "", err)
	}
	info := h.Info()
	trail.ModelName, trail.ModelVersion, trail.Backend = info.Name, info.Version, info.Backend

	label, cacheHit, err := e.predict(ctx, h, vec)
	if err != nil {
		return nil, budgetError(ctx, d, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, budgetError(ctx, d, err)
	}
	trail.Label = audit.IntPtr(int(label))
	trail.CacheHit = cacheHit

	eval = &domain.Evaluation{
		ID:          uuid.New().String(),
		RequestID:   opts.RequestID,
		Domain:      d,
		Model:       info,
		Label:       label,
		CacheHit:    cacheHit,
		EvaluatedAt: start.UTC(),
	}

	if d.Tiered() {
		thyroid, ok := rec.(*features.ThyroidInputs)
		if !ok {
			return nil, fmt.Errorf("thyroid inputs decoded as %T", rec)
		}
		labs := risk.AssessLabs(thyroid.TSH, thyroid.T3, thyroid.TT4, opts.Symptoms())
		eval.Verdict = risk.Aggregate(label, labs.LabRiskScore, labs.SymptomScore)
		labs = explain.AnnotateLabs(labs)
		eval.Labs = &labs
		eval.Report = explain.ReportFieldsFrom(thyroid, eval.Verdict).Report()
		trail.LabRiskScore = audit.IntPtr(labs.LabRiskScore)
	} else {
		eval.Verdict = domain.BinaryVerdict(d, label)
	}
	trail.Verdict = eval.Verdict

	eval.Recommendation, err = e.composer.Compose(d, eval.Verdict)
	if err != nil {
		return nil, err
	}
	eval.Inputs, err = features.Echo(vec)
	if err != nil {
		return nil, err
	}
	eval.VoiceProfile = explain.VoiceProfile(vec)
	eval.ProcessingTime = time.Since(start)

	e.logger.WithFields(logrus.Fields{
		"evaluation_id":   eval.ID,
		"request_id":      opts.RequestID,
		"domain":          d,
		"model":           info.Name,
		"model_version":   info.Version,
		"verdict":         eval.Verdict,
		"cache_hit":       cacheHit,
		"processing_time": eval.ProcessingTime,
	}).Info("Evaluation completed")

	return eval, nil
}

// predict consults the cache before invoking the classifier.
func (e *Evaluator) predict(ctx context.Context, h *model.Handle, vec domain.FeatureVector) (domain.Label, bool, error) {
	if e.cache == nil {
		label, err := e.invoker.Predict(ctx, h, vec)
		return label, false, err
	}

	key := cache.Key(h.Name(), h.Version(), vec)
	if label, ok := e.cache.Get(ctx, key); ok {
		e.logger.WithFields(logrus.Fields{
			"domain": vec.Domain,
			"model":  h.Name(),
		}).Debug("Prediction served from cache")
		return label, true, nil
	}

	label, err := e.invoker.Predict(ctx, h, vec)
	if err != nil {
		return 0, false, err
	}
	e.cache.Set(ctx, key, h.Name(), label)
	return label, false, nil
}

// record writes the audit entry. A failing audit store never fails the
// evaluation.
func (e *Evaluator) record(ctx context.Context, trail *audit.Record) {
	if e.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.audit.Record(ctx, trail); err != nil {
		e.logger.WithFields(logrus.Fields{
			"domain":     trail.Domain,
			"request_id": trail.RequestID,
		}).WithError(err).Warn("Failed to write audit record")
	}
}

// budgetError tags err with ErrEvaluationTimeout when the evaluation deadline
// has passed. A model's own timeout leaves ctx alive and stays an inference
// failure.
func budgetError(ctx context.Context, d domain.Domain, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("evaluation of %s: %w: %w", d, domain.ErrEvaluationTimeout, err)
	case ctx.Err() != nil:
		return fmt.Errorf("evaluation of %s aborted: %w", d, err)
	default:
		return err
	}
}

// validateSymptoms bounds the optional symptom score. It only feeds the
// thyroid aggregation and is ignored elsewhere.
func validateSymptoms(d domain.Domain, opts domain.EvaluationOptions) error {
	if opts.SymptomScore == nil || !d.Tiered() {
		return nil
	}
	if s := *opts.SymptomScore; s < 0 || s > MaxSymptomScore {
		return domain.NewRangeError(d, "symptom_score", float64(s), 0, MaxSymptomScore)
	}
	return nil
}

// ThyroidReport evaluates a thyroid submission and returns its report.
func (e *Evaluator) ThyroidReport(ctx context.Context, inputs domain.ClinicalInputSet, opts domain.EvaluationOptions) (*domain.Report, error) {
	eval, err := e.Evaluate(ctx, domain.Thyroid, inputs, opts)
	if err != nil {
		return nil, err
	}
	return eval.Report, nil
}
