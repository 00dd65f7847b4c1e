// Package risk combines a thyroid classifier label with lab-value flags into
// a tiered verdict.
package risk

import (
	"github.com/clinical-risk-scorer/internal/domain"
)

// Reference range of one lab analyte. A value is flagged when it lies
// strictly outside [Low, High].
type ReferenceRange struct {
	Analyte string
	Label   string
	Low     float64
	High    float64
}

// Thyroid panel reference ranges.
var (
	TSHRange = ReferenceRange{Analyte: "tsh", Label: "TSH", Low: 0.4, High: 4.0}
	T3Range  = ReferenceRange{Analyte: "t3", Label: "T3", Low: 0.8, High: 2.0}
	TT4Range = ReferenceRange{Analyte: "tt4", Label: "TT4", Low: 5.0, High: 12.0}
)

// Aggregation thresholds.
const (
	HighLabScore     = 2
	HighSymptomScore = 5
	ElevatedLabScore = 3
	ElevatedSymptoms = 6
	MaxLabRiskScore  = 3
)

// Band places v relative to the range.
func (r ReferenceRange) Band(v float64) domain.Band {
	switch {
	case v < r.Low:
		return domain.BandLow
	case v > r.High:
		return domain.BandHigh
	default:
		return domain.BandNormal
	}
}

// Flag evaluates v against the range.
func (r ReferenceRange) Flag(v float64) domain.LabFlag {
	band := r.Band(v)
	return domain.LabFlag{
		Analyte: r.Analyte,
		Label:   r.Label,
		Value:   v,
		Low:     r.Low,
		High:    r.High,
		Band:    band,
		Flagged: band != domain.BandNormal,
	}
}

// AssessLabs flags each analyte and counts the flags. The classifier output
// plays no part here.
func AssessLabs(tsh, t3, tt4 float64, symptomScore int) domain.LabAssessment {
	a := domain.LabAssessment{
		TSH:          TSHRange.Flag(tsh),
		T3:           T3Range.Flag(t3),
		TT4:          TT4Range.Flag(tt4),
		SymptomScore: symptomScore,
	}
	for _, f := range a.Flags() {
		if f.Flagged {
			a.LabRiskScore++
		}
	}
	return a
}

// Aggregate maps the thyroid label, lab risk score and symptom score to a
// verdict. Label 0 is the model-positive class.
//
//	positive: High if labs >= 2 or symptoms >= 5, else Moderate
//	negative: Moderate if labs >= 3 and symptoms >= 6, else Low
func Aggregate(label domain.Label, labRiskScore, symptomScore int) domain.Verdict {
	if label.IsPositive(domain.Thyroid) {
		if labRiskScore >= HighLabScore || symptomScore >= HighSymptomScore {
			return domain.VerdictHigh
		}
		return domain.VerdictModerate
	}
	if labRiskScore >= ElevatedLabScore && symptomScore >= ElevatedSymptoms {
		return domain.VerdictModerate
	}
	return domain.VerdictLow
}
