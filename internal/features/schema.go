// Package features turns the raw inputs of one submitted form into the
// ordered numeric vector a domain's classifier was trained on.
//
// Each domain has a Schema listing its fields in classifier order. The order
// of Schema.Fields and the order produced by the domain's ToVector method are
// the same contract and are tested against each other.
package features

import (
	"fmt"
	"strings"

	"github.com/clinical-risk-scorer/internal/domain"
)

// EchoStyle controls how a field value is rendered in the input summary.
type EchoStyle int

const (
	// EchoNumber renders the value, followed by the unit when one is set.
	EchoNumber EchoStyle = iota
	// EchoChoice renders the choice label for the value.
	EchoChoice
)

// FieldSpec declares one clinical input.
type FieldSpec struct {
	Key         string    `json:"key"`
	Aliases     []string  `json:"aliases,omitempty"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Integer     bool      `json:"integer"`
	Choices     []string  `json:"choices,omitempty"` // index is the encoded value
	Echo        EchoStyle `json:"-"`
}

// ChoiceValue resolves a case-insensitive choice label to its encoded value.
func (f *FieldSpec) ChoiceValue(label string) (float64, bool) {
	for i, c := range f.Choices {
		if strings.EqualFold(c, label) {
			return float64(i), true
		}
	}
	return 0, false
}

// ChoiceLabel returns the label for an encoded value, if the field has one.
func (f *FieldSpec) ChoiceLabel(v float64) (string, bool) {
	i := int(v)
	if float64(i) != v || i < 0 || i >= len(f.Choices) {
		return "", false
	}
	return f.Choices[i], true
}

// Schema is the ordered field list of one domain.
type Schema struct {
	Domain domain.Domain `json:"domain"`
	Name   string        `json:"name"`
	Fields []FieldSpec   `json:"fields"`

	index map[string]int
}

// Keys returns the field keys in classifier order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.Fields)
}

// Field returns the field declared under key or one of its aliases.
func (s *Schema) Field(name string) (*FieldSpec, bool) {
	i, ok := s.index[normalizeKey(name)]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

func newSchema(d domain.Domain, fields []FieldSpec) *Schema {
	s := &Schema{Domain: d, Name: d.DisplayName(), Fields: fields, index: make(map[string]int)}
	for i, f := range fields {
		s.index[normalizeKey(f.Key)] = i
		for _, a := range f.Aliases {
			s.index[normalizeKey(a)] = i
		}
	}
	return s
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.ReplaceAll(k, "-", "_")
}

var (
	binary   = []string{"No", "Yes"}
	sexes    = []string{"Female", "Male"}
	freqBand = [2]float64{80, 260}
)

func flag(key, label string) FieldSpec {
	return FieldSpec{Key: key, Label: label, Min: 0, Max: 1, Integer: true, Choices: binary}
}

func frequency(key, label string) FieldSpec {
	return FieldSpec{Key: key, Label: label, Min: freqBand[0], Max: freqBand[1]}
}

var schemas = map[domain.Domain]*Schema{
	domain.Heart: newSchema(domain.Heart, []FieldSpec{
		{Key: "age", Label: "Age", Min: 18, Max: 100, Integer: true},
		{Key: "sex", Label: "Sex", Min: 0, Max: 1, Integer: true, Choices: sexes, Echo: EchoChoice},
		{Key: "cp", Aliases: []string{"chest_pain_type"}, Label: "Chest Pain Type", Min: 0, Max: 3, Integer: true,
			Choices: []string{"Typical Angina", "Atypical Angina", "Non-anginal Pain", "Asymptomatic"}},
		{Key: "trestbps", Aliases: []string{"resting_bp"}, Label: "Resting Blood Pressure", Unit: "mm Hg", Min: 80, Max: 200, Integer: true},
		{Key: "chol", Aliases: []string{"cholesterol"}, Label: "Serum Cholesterol", Unit: "mg/dl", Min: 100, Max: 600, Integer: true},
		{Key: "fbs", Aliases: []string{"fasting_bs"}, Label: "Fasting Blood Sugar", Description: "Fasting Blood Sugar > 120 mg/dl",
			Min: 0, Max: 1, Integer: true, Choices: binary, Echo: EchoChoice},
		{Key: "restecg", Aliases: []string{"resting_ecg"}, Label: "Resting Electrocardiographic Results", Min: 0, Max: 2, Integer: true,
			Choices: []string{"Normal", "Having ST-T wave abnormality", "Showing probable or definite left ventricular hypertrophy"}},
		{Key: "thalach", Aliases: []string{"max_heart_rate"}, Label: "Maximum Heart Rate", Min: 60, Max: 220, Integer: true},
		{Key: "exang", Aliases: []string{"exercise_angina"}, Label: "Exercise Induced Angina", Min: 0, Max: 1, Integer: true,
			Choices: binary, Echo: EchoChoice},
		{Key: "oldpeak", Aliases: []string{"st_depression"}, Label: "ST Depression", Min: 0, Max: 6},
		{Key: "slope", Aliases: []string{"st_slope"}, Label: "Slope of Peak Exercise ST", Min: 0, Max: 2, Integer: true,
			Choices: []string{"Upsloping", "Flat", "Downsloping"}},
		{Key: "ca", Aliases: []string{"major_vessels"}, Label: "Number of Major Vessels", Min: 0, Max: 3, Integer: true},
		{Key: "thal", Aliases: []string{"thalassemia"}, Label: "Thalassemia", Min: 0, Max: 2, Integer: true,
			Choices: []string{"Normal", "Fixed Defect", "Reversible Defect"}},
	}),

	domain.Diabetes: newSchema(domain.Diabetes, []FieldSpec{
		{Key: "pregnancies", Label: "Pregnancies", Description: "Number of Pregnancies", Min: 0, Max: 20, Integer: true},
		{Key: "glucose", Label: "Glucose Level", Unit: "mg/dL", Min: 0, Max: 300, Integer: true},
		{Key: "blood_pressure", Aliases: []string{"bloodpressure"}, Label: "Blood Pressure", Unit: "mm Hg", Min: 0, Max: 200, Integer: true},
		{Key: "skin_thickness", Aliases: []string{"skinthickness"}, Label: "Skin Thickness", Unit: "mm", Min: 0, Max: 100, Integer: true},
		{Key: "insulin", Label: "Insulin Level", Unit: "mu U/ml", Min: 0, Max: 800, Integer: true},
		{Key: "bmi", Label: "BMI", Min: 0, Max: 60},
		{Key: "diabetes_pedigree_function", Aliases: []string{"diabetespedigreefunction", "dpf"}, Label: "Diabetes Pedigree Function", Min: 0, Max: 2.5},
		{Key: "age", Label: "Age", Min: 18, Max: 100, Integer: true},
	}),

	domain.Parkinsons: newSchema(domain.Parkinsons, []FieldSpec{
		frequency("meanfreq", "Average Vocal Fundamental Frequency (Hz)"),
		{Key: "sd", Label: "Frequency Variation (SD)", Min: 0, Max: 0.1},
		frequency("median", "Median Fundamental Frequency (Hz)"),
		frequency("q25", "First Quartile"),
		frequency("q75", "Third Quartile"),
		{Key: "iqr", Label: "Interquartile Range", Min: 0, Max: 0.2},
		{Key: "skew", Label: "Skewness", Min: -5, Max: 5},
		{Key: "kurt", Label: "Kurtosis", Min: 1, Max: 50},
		{Key: "sp_ent", Aliases: []string{"spectral_entropy"}, Label: "Spectral Entropy", Min: 0, Max: 1},
		{Key: "sfm", Aliases: []string{"spectral_flatness"}, Label: "Spectral Flatness", Min: 0, Max: 1},
		frequency("mode", "Mode Frequency"),
		frequency("centroid", "Frequency Centroid"),
		frequency("peakf", "Peak Frequency"),
		{Key: "meanfun", Label: "Average of Fundamental Frequency Across Acoustic Signals", Min: 0, Max: 0.5},
		{Key: "minfun", Label: "Minimum Fundamental Frequency Across Acoustic Signals", Min: 0, Max: 0.2},
		{Key: "maxfun", Label: "Maximum Fundamental Frequency Across Acoustic Signals", Min: 0.1, Max: 0.5},
		{Key: "meandom", Label: "Average of Dominant Frequency Measured Across Acoustic Signals", Min: 0, Max: 2},
		{Key: "mindom", Label: "Minimum of Dominant Frequency Measured Across Acoustic Signals", Min: 0, Max: 0.5},
		{Key: "maxdom", Label: "Maximum of Dominant Frequency Measured Across Acoustic Signals", Min: 2, Max: 10},
		{Key: "dfrange", Label: "Range of Dominant Frequency Measured Across Acoustic Signals", Min: 2, Max: 10},
		{Key: "modindx", Label: "Modulation Index", Min: 0, Max: 0.2},
		{Key: "ppe", Label: "Pitch Period Entropy", Min: 0, Max: 1},
	}),

	domain.LungCancer: newSchema(domain.LungCancer, []FieldSpec{
		{Key: "gender", Label: "Gender", Description: "1 = Male; 0 = Female", Min: 0, Max: 1, Integer: true, Choices: sexes},
		{Key: "age", Label: "Age", Min: 1, Max: 120, Integer: true},
		flag("smoking", "Smoking"),
		flag("yellow_fingers", "Yellow Fingers"),
		flag("anxiety", "Anxiety"),
		flag("peer_pressure", "Peer Pressure"),
		flag("chronic_disease", "Chronic Disease"),
		flag("fatigue", "Fatigue"),
		flag("allergy", "Allergy"),
		flag("wheezing", "Wheezing"),
		flag("alcohol_consuming", "Alcohol Consuming"),
		flag("coughing", "Coughing"),
		flag("shortness_of_breath", "Shortness Of Breath"),
		flag("swallowing_difficulty", "Swallowing Difficulty"),
		flag("chest_pain", "Chest Pain"),
	}),

	domain.Thyroid: newSchema(domain.Thyroid, []FieldSpec{
		{Key: "age", Label: "Age", Min: 1, Max: 120, Integer: true},
		{Key: "gender", Label: "Gender", Min: 0, Max: 1, Integer: true, Choices: sexes, Echo: EchoChoice},
		{Key: "on_thyroxine", Label: "On Thyroxine", Description: "Is the patient on thyroxine?", Min: 0, Max: 1, Integer: true,
			Choices: binary, Echo: EchoChoice},
		{Key: "t3_measured", Aliases: []string{"t3_measured_flag"}, Label: "T3 Measured", Description: "Has T3 been measured?", Min: 0, Max: 1, Integer: true,
			Choices: binary, Echo: EchoChoice},
		{Key: "t3", Label: "T3 Level", Unit: "ng/dL", Min: 0, Max: 10},
		{Key: "tt4", Label: "TT4 Level", Unit: "μg/dL", Min: 0, Max: 30},
		{Key: "tsh", Label: "TSH Level", Unit: "mU/L", Min: 0, Max: 100},
	}),
}

// SchemaFor returns the schema of domain d.
func SchemaFor(d domain.Domain) (*Schema, error) {
	s, ok := schemas[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, string(d))
	}
	return s, nil
}

// Schemas returns every schema in presentation order.
func Schemas() []*Schema {
	out := make([]*Schema, 0, len(domain.AllDomains))
	for _, d := range domain.AllDomains {
		out = append(out, schemas[d])
	}
	return out
}
