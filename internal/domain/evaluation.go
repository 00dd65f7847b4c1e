package domain

import "time"

// Band is the qualitative state of a lab analyte relative to its reference
// range.
type Band string

const (
	BandLow    Band = "Low"
	BandNormal Band = "Normal"
	BandHigh   Band = "High"
)

// LabFlag is the derived state of one lab analyte.
type LabFlag struct {
	Analyte   string  `json:"analyte"`
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Low       float64 `json:"reference_low"`
	High      float64 `json:"reference_high"`
	Band      Band    `json:"band"`
	Flagged   bool    `json:"flagged"`
	Narrative string  `json:"narrative"`
}

// LabAssessment is the thyroid lab-flag breakdown.
type LabAssessment struct {
	TSH          LabFlag `json:"tsh"`
	T3           LabFlag `json:"t3"`
	TT4          LabFlag `json:"tt4"`
	LabRiskScore int     `json:"lab_risk_score"`
	SymptomScore int     `json:"symptom_score"`
}

// Flags returns the analytes in reporting order.
func (a *LabAssessment) Flags() []LabFlag {
	return []LabFlag{a.TSH, a.T3, a.TT4}
}

// EchoField is one input echoed back for display, in schema order.
type EchoField struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// Recommendation is the fixed explanation attached to a verdict.
type Recommendation struct {
	Headline   string   `json:"headline"`
	Summary    string   `json:"summary"`
	Lead       string   `json:"lead"`
	Actions    []string `json:"actions"`
	Disclaimer string   `json:"disclaimer"`
}

// Report is the semi-persisted thyroid export artifact.
type Report struct {
	Summary  string   `json:"summary"`
	PDFLines []string `json:"pdf_lines"`
}

// ModelInfo identifies the classifier that produced a label.
type ModelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Backend string `json:"backend"`
}

// ProfilePoint is one axis of the Parkinson's voice profile chart.
type ProfilePoint struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// Evaluation is the complete result of one evaluation. It is produced fresh
// for each request and has no identity beyond it.
type Evaluation struct {
	ID             string         `json:"id"`
	RequestID      string         `json:"request_id,omitempty"`
	Domain         Domain         `json:"domain"`
	Model          ModelInfo      `json:"model"`
	Label          Label          `json:"label"`
	Verdict        Verdict        `json:"verdict"`
	Inputs         []EchoField    `json:"inputs"`
	Recommendation Recommendation `json:"recommendation"`
	Labs           *LabAssessment `json:"labs,omitempty"`
	Report         *Report        `json:"report,omitempty"`
	VoiceProfile   []ProfilePoint `json:"voice_profile,omitempty"`
	CacheHit       bool           `json:"cache_hit"`
	ProcessingTime time.Duration  `json:"processing_time_ns"`
	EvaluatedAt    time.Time      `json:"evaluated_at"`
}

// EvaluationOptions carries the optional inputs of an evaluation.
type EvaluationOptions struct {
	// SymptomScore feeds the thyroid aggregation. Nil means 0.
	SymptomScore *int   `json:"symptom_score,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// Symptoms returns the symptom score, defaulting to 0.
func (o EvaluationOptions) Symptoms() int {
	if o.SymptomScore == nil {
		return 0
	}
	return *o.SymptomScore
}
