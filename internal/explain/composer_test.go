package explain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/features"
	"github.com/clinical-risk-scorer/internal/risk"
)

func TestComposeCoversEveryVerdict(t *testing.T) {
	c := NewComposer()
	for _, d := range domain.AllDomains {
		verdicts := []domain.Verdict{domain.VerdictPositive, domain.VerdictNegative}
		if d.Tiered() {
			verdicts = []domain.Verdict{domain.VerdictLow, domain.VerdictModerate, domain.VerdictHigh}
		}
		for _, v := range verdicts {
			rec, err := c.Compose(d, v)
			require.NoError(t, err, "%s/%s", d, v)
			assert.NotEmpty(t, rec.Headline)
			assert.NotEmpty(t, rec.Summary)
			assert.NotEmpty(t, rec.Lead)
			assert.Equal(t, Disclaimer, rec.Disclaimer)
		}
	}
}

func TestComposeRejectsForeignVerdicts(t *testing.T) {
	c := NewComposer()

	_, err := c.Compose(domain.Thyroid, domain.VerdictPositive)
	assert.Error(t, err)
	_, err = c.Compose(domain.Heart, domain.VerdictHigh)
	assert.Error(t, err)
	_, err = c.Compose(domain.Domain("kidney"), domain.VerdictPositive)
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)
}

func TestComposeHeart(t *testing.T) {
	rec, err := NewComposer().ComposeLabel(domain.Heart, 1)
	require.NoError(t, err)

	assert.Equal(t, "Heart Disease Detected", rec.Headline)
	assert.Equal(t, []string{
		"Echocardiogram",
		"Stress test",
		"Coronary angiography (if necessary)",
		"Consultation with a cardiologist",
	}, rec.Actions)

	rec, err = NewComposer().ComposeLabel(domain.Heart, 0)
	require.NoError(t, err)
	assert.Equal(t, "No Heart Disease Detected", rec.Headline)
	assert.Len(t, rec.Actions, 5)
}

func TestComposeLabelRejectsThyroid(t *testing.T) {
	_, err := NewComposer().ComposeLabel(domain.Thyroid, 0)
	assert.Error(t, err)
}

func TestComposeIsDeterministic(t *testing.T) {
	c := NewComposer()
	first, err := c.Compose(domain.Thyroid, domain.VerdictHigh)
	require.NoError(t, err)

	// Mutating a returned body must not leak into later calls.
	first.Actions[0] = "changed"

	second, err := c.Compose(domain.Thyroid, domain.VerdictHigh)
	require.NoError(t, err)
	assert.Equal(t, "Urgent consultation with an endocrinologist for comprehensive evaluation", second.Actions[0])
}

func TestRender(t *testing.T) {
	rec, err := NewComposer().Compose(domain.LungCancer, domain.VerdictNegative)
	require.NoError(t, err)

	text := Render(domain.LungCancer, rec)
	assert.True(t, strings.HasPrefix(text, "Low Risk of Lung Cancer\n\n"))
	assert.Contains(t, text, "Recommendation: Continue regular health check-ups and maintain a healthy lifestyle.")
	assert.Contains(t, text, Disclaimer)

	rec, err = NewComposer().Compose(domain.Thyroid, domain.VerdictModerate)
	require.NoError(t, err)
	text = Render(domain.Thyroid, rec)
	assert.Contains(t, text, "We recommend:\n1. Follow-up with a primary care physician within the next 1-2 weeks\n")
	assert.Contains(t, text, "4. Review of current medications that may affect thyroid function\n")
}

func TestLabNarrative(t *testing.T) {
	tests := []struct {
		name     string
		flag     domain.LabFlag
		expected string
	}{
		{"low tsh", risk.TSHRange.Flag(0.1), "Low TSH: May indicate hyperthyroidism"},
		{"high tsh", risk.TSHRange.Flag(5.0), "High TSH: May indicate hypothyroidism"},
		{"normal tsh", risk.TSHRange.Flag(2.5), "Normal TSH: Within reference range"},
		{"low t3", risk.T3Range.Flag(0.5), "Low T3: May indicate hypothyroidism"},
		{"high t3", risk.T3Range.Flag(2.5), "High T3: May indicate hyperthyroidism"},
		{"low tt4", risk.TT4Range.Flag(3.0), "Low TT4: May indicate hypothyroidism"},
		{"high tt4", risk.TT4Range.Flag(13.0), "High TT4: May indicate hyperthyroidism"},
		{"normal tt4", risk.TT4Range.Flag(12.0), "Normal TT4: Within reference range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LabNarrative(tt.flag))
		})
	}
}

func TestAnnotateAndRenderLabs(t *testing.T) {
	labs := AnnotateLabs(risk.AssessLabs(5.0, 1.2, 3.0, 0))
	assert.Equal(t, "High TSH: May indicate hypothyroidism", labs.TSH.Narrative)
	assert.Equal(t, "Normal T3: Within reference range", labs.T3.Narrative)
	assert.Equal(t, "Low TT4: May indicate hypothyroidism", labs.TT4.Narrative)

	text := RenderLabs(labs)
	assert.Contains(t, text, "Total T4 Level\nLow TT4: May indicate hypothyroidism")
	assert.Equal(t, "TSH Level", LabHeading("tsh"))
}

func TestReportSummary(t *testing.T) {
	in := &features.ThyroidInputs{Age: 45, Gender: 0, OnThyroxine: 0, T3Measured: 1, T3: 1.2, TT4: 8.0, TSH: 5}
	fields := ReportFieldsFrom(in, domain.VerdictHigh)

	expected := "Thyroid Assessment Report\n" +
		"\n" +
		"Patient Information:\n" +
		"Age: 45\n" +
		"Gender: Female\n" +
		"On Thyroxine: No\n" +
		"\n" +
		"Lab Values:\n" +
		"TSH: 5.0\n" +
		"T3: 1.2\n" +
		"TT4: 8.0\n" +
		"\n" +
		"Overall Risk: High\n"
	assert.Equal(t, expected, fields.Summary())
}

func TestReportPDFLines(t *testing.T) {
	in := &features.ThyroidInputs{Age: 61, Gender: 1, OnThyroxine: 1, T3: 0.7, TT4: 13.5, TSH: 0.25}
	report := ReportFieldsFrom(in, domain.VerdictModerate).Report()

	assert.Equal(t, []string{
		"Thyroid Assessment Report",
		"Age: 61",
		"Gender: Male",
		"On Thyroxine: Yes",
		"TSH: 0.25",
		"T3: 0.7",
		"TT4: 13.5",
		"Overall Risk: Moderate",
	}, report.PDFLines)
	assert.Contains(t, report.Summary, "Gender: Male\nOn Thyroxine: Yes\n")
}

func TestVoiceProfile(t *testing.T) {
	values := make([]float64, 22)
	for i := range values {
		values[i] = float64(i)
	}
	points := VoiceProfile(domain.FeatureVector{Domain: domain.Parkinsons, Values: values})

	require.Len(t, points, 6)
	assert.Equal(t, "Fundamental Frequency", points[0].Category)
	assert.Equal(t, "DFA", points[5].Category)
	assert.Equal(t, 5.0, points[5].Value)

	assert.Nil(t, VoiceProfile(domain.FeatureVector{Domain: domain.Heart, Values: values}))
}

func TestEducationAndReferences(t *testing.T) {
	topics := Education(domain.Thyroid)
	require.Len(t, topics, 3)
	assert.Equal(t, "Thyroid Basics", topics[0].Title)
	assert.Equal(t, "Hypothyroidism", topics[1].Title)
	assert.Equal(t, "Hyperthyroidism", topics[2].Title)

	refs := References(domain.Thyroid)
	require.Len(t, refs, 3)
	assert.Equal(t, "American Thyroid Association Guidelines, 2023", refs[0])

	assert.Nil(t, Education(domain.Heart))
	assert.Nil(t, References(domain.Diabetes))
}
