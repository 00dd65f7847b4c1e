package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinical-risk-scorer/internal/audit"
	"github.com/clinical-risk-scorer/internal/cache"
	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/model"
	"github.com/clinical-risk-scorer/internal/model/modeltest"
)

// memStore is an in-memory audit.Store.
type memStore struct {
	mu      sync.Mutex
	records []*audit.Record
	fail    error
}

func (m *memStore) Record(_ context.Context, rec *audit.Record) error {
	if m.fail != nil {
		return m.fail
	}
	audit.Prepare(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) List(context.Context, audit.Filter) ([]*audit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.Record(nil), m.records...), nil
}

func (m *memStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memStore) Stats(context.Context) (*audit.Stats, error) {
	n, _ := m.Count(context.Background())
	return &audit.Stats{Total: n, ByDomain: map[string]int64{}, ByVerdict: map[string]int64{}}, nil
}

func (m *memStore) ExportJSON(ctx context.Context, w io.Writer) error {
	recs, _ := m.List(ctx, audit.Filter{})
	return audit.WriteExport(w, recs)
}

func (m *memStore) Purge(context.Context, time.Time) (int64, error) { return 0, nil }
func (m *memStore) Ping(context.Context) error                      { return m.fail }
func (m *memStore) Close() error                                    { return nil }

func (m *memStore) last() *audit.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return nil
	}
	return m.records[len(m.records)-1]
}

// mockStore expects Record calls. The evaluator never calls the other
// Store methods.
type mockStore struct {
	audit.Store
	mock.Mock
}

func (m *mockStore) Record(ctx context.Context, rec *audit.Record) error {
	return m.Called(ctx, rec).Error(0)
}

// stubRegistry builds a registry whose classifiers all return label and
// count their calls.
func stubRegistry(t *testing.T, label domain.Label, calls *atomic.Int64) *model.Registry {
	t.Helper()
	return modeltest.Registry(t, func(ctx context.Context, x []float64) (domain.Label, error) {
		calls.Add(1)
		return label, nil
	})
}

func newTestEvaluator(reg *model.Registry, opts Options) *Evaluator {
	if opts.Logger == nil {
		opts.Logger, _ = test.NewNullLogger()
	}
	return NewEvaluator(reg, opts)
}

func TestEvaluateHeartPositive(t *testing.T) {
	var calls atomic.Int64
	store := &memStore{}
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{Audit: store})

	eval, err := ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{RequestID: "req-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, eval.ID)
	assert.Equal(t, "req-1", eval.RequestID)
	assert.Equal(t, domain.VerdictPositive, eval.Verdict)
	assert.Equal(t, domain.Label(1), eval.Label)
	assert.Equal(t, "Heart Disease Detected", eval.Recommendation.Headline)
	require.Len(t, eval.Inputs, 13)
	assert.Equal(t, "age", eval.Inputs[0].Key)
	assert.Equal(t, "Sex: Male", eval.Inputs[1].Display)
	assert.Nil(t, eval.Labs)
	assert.Nil(t, eval.Report)
	assert.Nil(t, eval.VoiceProfile)
	assert.Equal(t, int64(1), calls.Load())

	rec := store.last()
	require.NotNil(t, rec)
	assert.Equal(t, audit.OutcomeSuccess, rec.Outcome)
	assert.Equal(t, domain.VerdictPositive, rec.Verdict)
	assert.Equal(t, "heart", rec.ModelName)
	assert.Equal(t, "req-1", rec.RequestID)
}

func TestEvaluateHeartNegative(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 0, &calls), Options{})

	eval, err := ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictNegative, eval.Verdict)
	assert.Equal(t, "No Heart Disease Detected", eval.Recommendation.Headline)
}

func TestEvaluateThyroid(t *testing.T) {
	tests := []struct {
		name     string
		label    domain.Label
		inputs   domain.ClinicalInputSet
		symptoms *int
		verdict  domain.Verdict
		labScore int
	}{
		{"normal labs, model negative", 1, modeltest.ThyroidInputs(2.5, 1.2, 8.0), nil, domain.VerdictLow, 0},
		{"two flags, model positive", 0, modeltest.ThyroidInputs(5.0, 1.2, 3.0), nil, domain.VerdictHigh, 2},
		{"one flag, model positive", 0, modeltest.ThyroidInputs(5.0, 1.2, 8.0), nil, domain.VerdictModerate, 1},
		{"symptoms escalate positive", 0, modeltest.ThyroidInputs(2.5, 1.2, 8.0), audit.IntPtr(5), domain.VerdictHigh, 0},
		{"all flags and symptoms, model negative", 1, modeltest.ThyroidInputs(5.0, 0.5, 13.0), audit.IntPtr(6), domain.VerdictModerate, 3},
		{"all flags without symptoms, model negative", 1, modeltest.ThyroidInputs(5.0, 0.5, 13.0), nil, domain.VerdictLow, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			store := &memStore{}
			ev := newTestEvaluator(stubRegistry(t, tt.label, &calls), Options{Audit: store})

			eval, err := ev.Evaluate(context.Background(), domain.Thyroid, tt.inputs, domain.EvaluationOptions{SymptomScore: tt.symptoms})
			require.NoError(t, err)

			assert.Equal(t, tt.verdict, eval.Verdict)
			require.NotNil(t, eval.Labs)
			assert.Equal(t, tt.labScore, eval.Labs.LabRiskScore)
			assert.NotEmpty(t, eval.Labs.TSH.Narrative)
			require.NotNil(t, eval.Report)
			assert.Contains(t, eval.Report.Summary, "Overall Risk: "+string(tt.verdict)+"\n")
			assert.Len(t, eval.Report.PDFLines, 8)

			rec := store.last()
			require.NotNil(t, rec.LabRiskScore)
			assert.Equal(t, tt.labScore, *rec.LabRiskScore)
		})
	}
}

func TestThyroidReport(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 0, &calls), Options{})

	report, err := ev.ThyroidReport(context.Background(), modeltest.ThyroidInputs(5.0, 1.2, 3.0), domain.EvaluationOptions{})
	require.NoError(t, err)
	assert.Contains(t, report.Summary, "TSH: 5.0\nT3: 1.2\nTT4: 3.0\n")
	assert.Equal(t, "Overall Risk: High", report.PDFLines[7])
}

func TestEvaluateParkinsonsVoiceProfile(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{})

	eval, err := ev.Evaluate(context.Background(), domain.Parkinsons, modeltest.MidInputs(t, domain.Parkinsons), domain.EvaluationOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictPositive, eval.Verdict)
	assert.Len(t, eval.VoiceProfile, 6)
	assert.Len(t, eval.Inputs, 22)
}

func TestEvaluateEveryDomain(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{})

	for _, d := range domain.AllDomains {
		eval, err := ev.Evaluate(context.Background(), d, modeltest.MidInputs(t, d), domain.EvaluationOptions{})
		require.NoError(t, err, d)
		assert.True(t, eval.Verdict.ValidFor(d), "%s produced %s", d, eval.Verdict)
		assert.NotEmpty(t, eval.Recommendation.Actions)
	}
	assert.Equal(t, int64(len(domain.AllDomains)), calls.Load())
}

func TestEvaluateValidationFailures(t *testing.T) {
	missing := modeltest.HeartInputs()
	delete(missing, "thal")

	outOfRange := modeltest.HeartInputs()
	outOfRange["age"] = 150.0

	tests := []struct {
		name   string
		d      domain.Domain
		inputs domain.ClinicalInputSet
		opts   domain.EvaluationOptions
		code   string
		field  string
	}{
		{"missing field", domain.Heart, missing, domain.EvaluationOptions{}, domain.CodeSchema, "thal"},
		{"out of range", domain.Heart, outOfRange, domain.EvaluationOptions{}, domain.CodeRange, "age"},
		{"symptom score too high", domain.Thyroid, modeltest.ThyroidInputs(2.5, 1.2, 8.0), domain.EvaluationOptions{SymptomScore: audit.IntPtr(101)}, domain.CodeRange, "symptom_score"},
		{"negative symptom score", domain.Thyroid, modeltest.ThyroidInputs(2.5, 1.2, 8.0), domain.EvaluationOptions{SymptomScore: audit.IntPtr(-1)}, domain.CodeRange, "symptom_score"},
		{"unknown domain", domain.Domain("kidney"), modeltest.HeartInputs(), domain.EvaluationOptions{}, domain.CodeUnknownDomain, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			store := &memStore{}
			ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{Audit: store})

			eval, err := ev.Evaluate(context.Background(), tt.d, tt.inputs, tt.opts)
			require.Error(t, err)
			assert.Nil(t, eval)
			assert.Equal(t, tt.code, domain.CodeFor(err))
			assert.Equal(t, tt.field, domain.NewErrorResponse(err, "").Field)
			assert.Zero(t, calls.Load(), "classifier must not run")

			rec := store.last()
			require.NotNil(t, rec)
			assert.Equal(t, audit.OutcomeError, rec.Outcome)
			assert.Equal(t, tt.code, rec.ErrorCode)
			assert.Nil(t, rec.Label)
		})
	}
}

func TestSymptomScoreIgnoredOutsideThyroid(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{})

	_, err := ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{SymptomScore: audit.IntPtr(500)})
	assert.NoError(t, err)
}

func TestEvaluateInferenceError(t *testing.T) {
	store := &memStore{}
	reg := modeltest.Registry(t, func(context.Context, []float64) (domain.Label, error) {
		return 0, errors.New("model file corrupted")
	})
	ev := newTestEvaluator(reg, Options{Audit: store})

	_, err := ev.Evaluate(context.Background(), domain.Diabetes, modeltest.MidInputs(t, domain.Diabetes), domain.EvaluationOptions{})
	var inferenceErr *domain.InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.Equal(t, domain.Diabetes, inferenceErr.Domain)
	assert.Equal(t, domain.CodeInference, store.last().ErrorCode)
	assert.Equal(t, "diabetes", store.last().ModelName)
}

func TestEvaluateUnexpectedLabel(t *testing.T) {
	reg := modeltest.Registry(t, func(context.Context, []float64) (domain.Label, error) {
		return 7, nil
	})
	ev := newTestEvaluator(reg, Options{})

	_, err := ev.Evaluate(context.Background(), domain.LungCancer, modeltest.MidInputs(t, domain.LungCancer), domain.EvaluationOptions{})
	assert.ErrorIs(t, err, domain.ErrUnexpectedLabel)
	assert.Equal(t, domain.CodeInference, domain.CodeFor(err))
}

func TestEvaluateModelNotLoaded(t *testing.T) {
	reg, err := model.NewRegistry()
	require.NoError(t, err)
	ev := newTestEvaluator(reg, Options{})

	_, err = ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{})
	assert.ErrorIs(t, err, domain.ErrModelNotLoaded)
	assert.Equal(t, domain.CodeInference, domain.CodeFor(err))
}

func TestEvaluateTimeout(t *testing.T) {
	reg := modeltest.Registry(t, func(ctx context.Context, _ []float64) (domain.Label, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	ev := newTestEvaluator(reg, Options{Timeout: 20 * time.Millisecond})

	_, err := ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEvaluationTimeout)
	assert.Equal(t, domain.CodeTimeout, domain.CodeFor(err))
}

func TestEvaluateModelTimeoutIsInferenceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	remote, err := model.NewRemoteClassifier("heart-remote", "1",
		&model.RemoteParams{Endpoint: server.URL, Timeout: "50ms"}, model.BackendOptions{})
	require.NoError(t, err)
	reg, err := model.NewRegistry(model.NewHandle(model.HandleConfig{
		Name:    "heart-remote",
		Version: "1",
		Domain:  domain.Heart,
		Classes: [2]domain.Label{0, 1},
	}, remote))
	require.NoError(t, err)
	ev := newTestEvaluator(reg, Options{Timeout: 10 * time.Second})

	_, err = ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{})
	require.Error(t, err)

	var inferenceErr *domain.InferenceError
	assert.ErrorAs(t, err, &inferenceErr)
	assert.NotErrorIs(t, err, domain.ErrEvaluationTimeout)
	assert.Equal(t, domain.CodeInference, domain.CodeFor(err))
}

func TestEvaluateUsesCache(t *testing.T) {
	var calls atomic.Int64
	c, err := cache.NewWithClient(16, nil, time.Minute, nil)
	require.NoError(t, err)
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{Cache: c})

	first, err := ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Verdict, second.Verdict)
	assert.NotEqual(t, first.ID, second.ID, "every evaluation gets its own id")
	assert.Equal(t, int64(1), calls.Load())
}

func TestAuditFailureDoesNotFailEvaluation(t *testing.T) {
	var calls atomic.Int64
	logger, hook := test.NewNullLogger()
	store := &memStore{fail: errors.New("disk full")}
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{Audit: store, Logger: logger})

	eval, err := ev.Evaluate(context.Background(), domain.Heart, modeltest.HeartInputs(), domain.EvaluationOptions{})
	require.NoError(t, err)
	assert.NotNil(t, eval)
	assert.Equal(t, "Failed to write audit record", hook.LastEntry().Message)
}

func TestAuditRecordIsAnonymized(t *testing.T) {
	var calls atomic.Int64
	store := &mockStore{}
	store.On("Record", mock.Anything, mock.MatchedBy(func(rec *audit.Record) bool {
		return rec.Domain == domain.Thyroid &&
			rec.RequestID == "req-42" &&
			rec.Verdict == domain.VerdictHigh &&
			rec.Label != nil && *rec.Label == 0 &&
			rec.LabRiskScore != nil && *rec.LabRiskScore == 3 &&
			rec.ErrorCode == ""
	})).Return(nil).Once()

	ev := newTestEvaluator(stubRegistry(t, 0, &calls), Options{Audit: store})
	_, err := ev.Evaluate(context.Background(), domain.Thyroid, modeltest.ThyroidInputs(8.0, 0.5, 3.0),
		domain.EvaluationOptions{RequestID: "req-42"})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestEvaluationsAreIndependent(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 0, &calls), Options{})

	var wg sync.WaitGroup
	results := make([]*domain.Evaluation, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := modeltest.ThyroidInputs(2.5, 1.2, 8.0)
			if i%2 == 1 {
				in = modeltest.ThyroidInputs(5.0, 1.2, 3.0)
			}
			eval, err := ev.Evaluate(context.Background(), domain.Thyroid, in, domain.EvaluationOptions{})
			if err == nil {
				results[i] = eval
			}
		}(i)
	}
	wg.Wait()

	for i, eval := range results {
		require.NotNil(t, eval, i)
		if i%2 == 1 {
			assert.Equal(t, domain.VerdictHigh, eval.Verdict)
		} else {
			assert.Equal(t, domain.VerdictModerate, eval.Verdict)
		}
	}
}

func TestDescribeAndDomains(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{})

	info, err := ev.Describe(domain.Thyroid)
	require.NoError(t, err)
	assert.True(t, info.Tiered)
	assert.Len(t, info.Fields, 7)
	assert.Equal(t, "thyroid", info.Model.Name)
	assert.Len(t, info.Education, 3)

	_, err = ev.Describe(domain.Domain("kidney"))
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)

	all := ev.Domains()
	require.Len(t, all, 5)
	assert.Equal(t, domain.Heart, all[0].Domain)
	assert.Nil(t, all[0].Fields)
	assert.Equal(t, []domain.Verdict{domain.VerdictPositive, domain.VerdictNegative}, all[0].Verdicts)
}

func TestHealth(t *testing.T) {
	var calls atomic.Int64
	ev := newTestEvaluator(stubRegistry(t, 1, &calls), Options{Audit: &memStore{}})

	status, healthy := ev.Health(context.Background())
	assert.True(t, healthy)
	assert.Equal(t, "ok", status["models"])
	assert.Equal(t, "ok", status["audit"])

	empty, err := model.NewRegistry()
	require.NoError(t, err)
	status, healthy = newTestEvaluator(empty, Options{}).Health(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "incomplete", status["models"])
}
