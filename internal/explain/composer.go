// Package explain renders verdicts into the fixed recommendation texts shown
// to the user, plus the thyroid lab narrative and report.
//
// Every function here is pure: the same verdict always produces the same
// text.
package explain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/features"
)

// Composer maps verdicts to recommendation texts.
type Composer struct{}

// NewComposer creates a new explanation composer
func NewComposer() *Composer {
	return &Composer{}
}

// Compose returns the recommendation for a verdict. Binary domains accept
// Positive or Negative; thyroid accepts Low, Moderate or High.
func (c *Composer) Compose(d domain.Domain, v domain.Verdict) (domain.Recommendation, error) {
	if !d.IsValid() {
		return domain.Recommendation{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, string(d))
	}
	b, ok := bodies[bodyKey{d, v}]
	if !ok {
		return domain.Recommendation{}, fmt.Errorf("verdict %q is not defined for %s", v, d)
	}
	return domain.Recommendation{
		Headline:   b.headline,
		Summary:    b.summary,
		Lead:       b.lead,
		Actions:    append([]string(nil), b.actions...),
		Disclaimer: Disclaimer,
	}, nil
}

// ComposeLabel is Compose for a binary domain's raw classifier label.
func (c *Composer) ComposeLabel(d domain.Domain, l domain.Label) (domain.Recommendation, error) {
	if d.Tiered() {
		return domain.Recommendation{}, fmt.Errorf("%s verdicts need lab aggregation", d)
	}
	return c.Compose(d, domain.BinaryVerdict(d, l))
}

// Render formats a recommendation as plain text. Thyroid actions are
// numbered, other domains use bullets.
func Render(d domain.Domain, rec domain.Recommendation) string {
	var sb strings.Builder
	sb.WriteString(rec.Headline)
	sb.WriteString("\n\n")
	sb.WriteString(rec.Summary)
	sb.WriteString("\n\n")
	if d.Tiered() {
		sb.WriteString(rec.Lead)
	} else {
		sb.WriteString("Recommendation: ")
		sb.WriteString(rec.Lead)
	}
	sb.WriteString("\n")
	for i, a := range rec.Actions {
		if d.Tiered() {
			sb.WriteString(strconv.Itoa(i + 1))
			sb.WriteString(". ")
		} else {
			sb.WriteString("- ")
		}
		sb.WriteString(a)
		sb.WriteString("\n")
	}
	if rec.Disclaimer != "" {
		sb.WriteString("\n")
		sb.WriteString(rec.Disclaimer)
		sb.WriteString("\n")
	}
	return sb.String()
}

// VoiceProfile returns the chart series for a Parkinson's vector: the first
// six features under their chart categories.
func VoiceProfile(vec domain.FeatureVector) []domain.ProfilePoint {
	if vec.Domain != domain.Parkinsons {
		return nil
	}
	n := len(voiceProfileCategories)
	if len(vec.Values) < n {
		n = len(vec.Values)
	}
	points := make([]domain.ProfilePoint, n)
	for i := 0; i < n; i++ {
		points[i] = domain.ProfilePoint{Category: voiceProfileCategories[i], Value: vec.Values[i]}
	}
	return points
}

// Education returns the educational notes for d. Only thyroid has any.
func Education(d domain.Domain) []Topic {
	if d != domain.Thyroid {
		return nil
	}
	return append([]Topic(nil), thyroidEducation...)
}

// References returns the reference list for d. Only thyroid has any.
func References(d domain.Domain) []string {
	if d != domain.Thyroid {
		return nil
	}
	return append([]string(nil), thyroidReferences...)
}

// formatValue renders a float like the report does: integral values keep one
// decimal place.
func formatValue(v float64) string {
	return features.FormatNumber(v, false)
}
