package explain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/features"
)

// ReportTitle heads the thyroid report.
const ReportTitle = "Thyroid Assessment Report"

var labHeadings = map[string]string{
	"tsh": "TSH Level",
	"t3":  "T3 Level",
	"tt4": "Total T4 Level",
}

// Low TSH points the other way from low T3 or TT4.
var bandMeaning = map[string]map[domain.Band]string{
	"tsh": {domain.BandLow: "hyperthyroidism", domain.BandHigh: "hypothyroidism"},
	"t3":  {domain.BandLow: "hypothyroidism", domain.BandHigh: "hyperthyroidism"},
	"tt4": {domain.BandLow: "hypothyroidism", domain.BandHigh: "hyperthyroidism"},
}

// LabHeading returns the display heading of an analyte.
func LabHeading(analyte string) string {
	if h, ok := labHeadings[analyte]; ok {
		return h
	}
	return strings.ToUpper(analyte)
}

// LabNarrative returns the narrative line for one lab flag, for example
// "Low TSH: May indicate hyperthyroidism".
func LabNarrative(f domain.LabFlag) string {
	if f.Band == domain.BandNormal {
		return fmt.Sprintf("Normal %s: Within reference range", f.Label)
	}
	return fmt.Sprintf("%s %s: May indicate %s", f.Band, f.Label, bandMeaning[f.Analyte][f.Band])
}

// AnnotateLabs fills in the narrative of every flag.
func AnnotateLabs(a domain.LabAssessment) domain.LabAssessment {
	a.TSH.Narrative = LabNarrative(a.TSH)
	a.T3.Narrative = LabNarrative(a.T3)
	a.TT4.Narrative = LabNarrative(a.TT4)
	return a
}

// RenderLabs formats the lab analysis as plain text.
func RenderLabs(a domain.LabAssessment) string {
	var sb strings.Builder
	sb.WriteString("Lab Value Analysis\n")
	for _, f := range a.Flags() {
		sb.WriteString("\n")
		sb.WriteString(LabHeading(f.Analyte))
		sb.WriteString("\n")
		sb.WriteString(LabNarrative(f))
		sb.WriteString("\n")
	}
	return sb.String()
}

// ReportFields are the values printed on the thyroid report.
type ReportFields struct {
	Age         int
	Male        bool
	OnThyroxine bool
	TSH         float64
	T3          float64
	TT4         float64
	Risk        domain.Verdict
}

// ReportFieldsFrom extracts the report values from decoded thyroid inputs.
func ReportFieldsFrom(in *features.ThyroidInputs, risk domain.Verdict) ReportFields {
	return ReportFields{
		Age:         in.Age,
		Male:        in.Gender == 1,
		OnThyroxine: in.OnThyroxine == 1,
		TSH:         in.TSH,
		T3:          in.T3,
		TT4:         in.TT4,
		Risk:        risk,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (f ReportFields) gender() string {
	if f.Male {
		return "Male"
	}
	return "Female"
}

// Summary renders the copy-to-clipboard text. Field order and labels are
// fixed.
func (f ReportFields) Summary() string {
	var sb strings.Builder
	sb.WriteString(ReportTitle + "\n")
	sb.WriteString("\n")
	sb.WriteString("Patient Information:\n")
	sb.WriteString("Age: " + strconv.Itoa(f.Age) + "\n")
	sb.WriteString("Gender: " + f.gender() + "\n")
	sb.WriteString("On Thyroxine: " + yesNo(f.OnThyroxine) + "\n")
	sb.WriteString("\n")
	sb.WriteString("Lab Values:\n")
	sb.WriteString("TSH: " + formatValue(f.TSH) + "\n")
	sb.WriteString("T3: " + formatValue(f.T3) + "\n")
	sb.WriteString("TT4: " + formatValue(f.TT4) + "\n")
	sb.WriteString("\n")
	sb.WriteString("Overall Risk: " + string(f.Risk) + "\n")
	return sb.String()
}

// PDFLines returns the lines of the printable report, top to bottom.
func (f ReportFields) PDFLines() []string {
	return []string{
		ReportTitle,
		"Age: " + strconv.Itoa(f.Age),
		"Gender: " + f.gender(),
		"On Thyroxine: " + yesNo(f.OnThyroxine),
		"TSH: " + formatValue(f.TSH),
		"T3: " + formatValue(f.T3),
		"TT4: " + formatValue(f.TT4),
		"Overall Risk: " + string(f.Risk),
	}
}

// Report builds both report renderings.
func (f ReportFields) Report() *domain.Report {
	return &domain.Report{Summary: f.Summary(), PDFLines: f.PDFLines()}
}
