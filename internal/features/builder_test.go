package features

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-risk-scorer/internal/domain"
)

func heartInputs() domain.ClinicalInputSet {
	return domain.ClinicalInputSet{
		"age": 50, "sex": 1, "cp": 0, "trestbps": 120, "chol": 200,
		"fbs": 0, "restecg": 0, "thalach": 150, "exang": 0,
		"oldpeak": 1.0, "slope": 0, "ca": 0, "thal": 0,
	}
}

// fullInputs returns a valid input set for d using the lower bound of every
// field.
func fullInputs(t *testing.T, d domain.Domain) domain.ClinicalInputSet {
	t.Helper()
	schema, err := SchemaFor(d)
	require.NoError(t, err)
	in := domain.ClinicalInputSet{}
	for _, f := range schema.Fields {
		in[f.Key] = f.Min
	}
	return in
}

func TestBuildHeartScenario(t *testing.T) {
	vec, err := NewBuilder().Build(domain.Heart, heartInputs())
	require.NoError(t, err)

	assert.Equal(t, []float64{50, 1, 0, 120, 200, 0, 0, 150, 0, 1.0, 0, 0, 0}, vec.Values)
	assert.Equal(t, domain.Heart, vec.Domain)
	assert.Equal(t, []string{"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
		"thalach", "exang", "oldpeak", "slope", "ca", "thal"}, vec.Names)
}

func TestBuildVectorLengths(t *testing.T) {
	expected := map[domain.Domain]int{
		domain.Heart:      13,
		domain.Diabetes:   8,
		domain.Parkinsons: 22,
		domain.LungCancer: 15,
		domain.Thyroid:    7,
	}

	b := NewBuilder()
	for d, n := range expected {
		t.Run(string(d), func(t *testing.T) {
			vec, err := b.Build(d, fullInputs(t, d))
			require.NoError(t, err)
			assert.Equal(t, n, vec.Len())
			assert.Len(t, vec.Names, n)
		})
	}
}

// Each position must carry the field declared at that position. Distinct
// in-range values per field make any transposition visible.
func TestBuildPreservesSchemaOrder(t *testing.T) {
	b := NewBuilder()
	for _, schema := range Schemas() {
		t.Run(string(schema.Domain), func(t *testing.T) {
			in := domain.ClinicalInputSet{}
			want := make([]float64, schema.Len())
			for i, f := range schema.Fields {
				v := f.Max
				if !f.Integer {
					v = f.Min + (f.Max-f.Min)*float64(i+1)/float64(schema.Len()+1)
				}
				in[f.Key] = v
				want[i] = v
			}

			vec, err := b.Build(schema.Domain, in)
			require.NoError(t, err)
			assert.Equal(t, schema.Keys(), vec.Names)
			for i := range want {
				assert.InDelta(t, want[i], vec.Values[i], 1e-12, "position %d (%s)", i, schema.Fields[i].Key)
			}
		})
	}
}

func TestBuildExpectedOrders(t *testing.T) {
	tests := map[domain.Domain][]string{
		domain.Diabetes: {"pregnancies", "glucose", "blood_pressure", "skin_thickness", "insulin",
			"bmi", "diabetes_pedigree_function", "age"},
		domain.Parkinsons: {"meanfreq", "sd", "median", "q25", "q75", "iqr", "skew", "kurt", "sp_ent",
			"sfm", "mode", "centroid", "peakf", "meanfun", "minfun", "maxfun", "meandom", "mindom",
			"maxdom", "dfrange", "modindx", "ppe"},
		domain.LungCancer: {"gender", "age", "smoking", "yellow_fingers", "anxiety", "peer_pressure",
			"chronic_disease", "fatigue", "allergy", "wheezing", "alcohol_consuming", "coughing",
			"shortness_of_breath", "swallowing_difficulty", "chest_pain"},
		domain.Thyroid: {"age", "gender", "on_thyroxine", "t3_measured", "t3", "tt4", "tsh"},
	}

	for d, keys := range tests {
		schema, err := SchemaFor(d)
		require.NoError(t, err)
		assert.Equal(t, keys, schema.Keys(), string(d))
	}
}

func TestBuildSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(domain.ClinicalInputSet)
		field  string
	}{
		{"missing field", func(in domain.ClinicalInputSet) { delete(in, "thal") }, "thal"},
		{"undeclared field", func(in domain.ClinicalInputSet) { in["weight"] = 80 }, "weight"},
		{"alias and key together", func(in domain.ClinicalInputSet) { in["chest_pain_type"] = 1 }, "cp"},
		{"malformed string", func(in domain.ClinicalInputSet) { in["chol"] = "high" }, "chol"},
		{"null value", func(in domain.ClinicalInputSet) { in["age"] = nil }, "age"},
		{"unsupported type", func(in domain.ClinicalInputSet) { in["age"] = []int{50} }, "age"},
		{"fractional integer", func(in domain.ClinicalInputSet) { in["ca"] = 1.5 }, "ca"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := heartInputs()
			tt.mutate(in)

			_, err := NewBuilder().Build(domain.Heart, in)
			var schemaErr *domain.SchemaError
			require.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
			assert.Equal(t, tt.field, schemaErr.Field)
		})
	}
}

func TestBuildRangeErrors(t *testing.T) {
	tests := []struct {
		name  string
		d     domain.Domain
		field string
		value any
	}{
		{"heart age below", domain.Heart, "age", 17},
		{"heart cp above", domain.Heart, "cp", 4},
		{"thyroid tsh above", domain.Thyroid, "tsh", 100.1},
		{"thyroid t3 negative", domain.Thyroid, "t3", -0.1},
		{"parkinsons maxfun below", domain.Parkinsons, "maxfun", 0.05},
		{"lung flag above", domain.LungCancer, "smoking", 2},
		{"diabetes NaN", domain.Diabetes, "bmi", math.NaN()},
		{"diabetes Inf", domain.Diabetes, "glucose", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fullInputs(t, tt.d)
			in[tt.field] = tt.value

			_, err := NewBuilder().Build(tt.d, in)
			var rangeErr *domain.RangeError
			require.True(t, errors.As(err, &rangeErr), "expected RangeError, got %v", err)
			assert.Equal(t, tt.field, rangeErr.Field)
		})
	}
}

func TestBuildBoundsAreInclusive(t *testing.T) {
	in := fullInputs(t, domain.Thyroid)
	in["tsh"] = 100.0
	in["age"] = 120

	vec, err := NewBuilder().Build(domain.Thyroid, in)
	require.NoError(t, err)
	tsh, _ := vec.Value("tsh")
	assert.Equal(t, 100.0, tsh)
}

func TestBuildCoercesValues(t *testing.T) {
	in := domain.ClinicalInputSet{
		"age":             "50",
		"sex":             "male",
		"chest_pain_type": "Asymptomatic",
		"resting_bp":      json.Number("120"),
		"cholesterol":     int64(200),
		"fasting_bs":      false,
		"resting_ecg":     "Normal",
		"max_heart_rate":  float32(150),
		"exercise_angina": true,
		"st_depression":   "1.5",
		"st_slope":        "flat",
		"major_vessels":   uint8(2),
		"thalassemia":     "Reversible Defect",
	}

	vec, err := NewBuilder().Build(domain.Heart, in)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 1, 3, 120, 200, 0, 0, 150, 1, 1.5, 1, 2, 2}, vec.Values)
}

func TestBuildAcceptsThyroidLongNames(t *testing.T) {
	in := domain.ClinicalInputSet{
		"age": 45, "gender": 1, "on_thyroxine": 0, "t3_measured_flag": 1,
		"t3": 1.2, "tt4": 8.0, "tsh": 2.5,
	}

	vec, err := NewBuilder().Build(domain.Thyroid, in)
	require.NoError(t, err)
	assert.Equal(t, []float64{45, 1, 0, 1, 1.2, 8.0, 2.5}, vec.Values)

	in["t3_measured"] = 1
	_, err = NewBuilder().Build(domain.Thyroid, in)
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "t3_measured", schemaErr.Field)
}

func TestBuildUnknownDomain(t *testing.T) {
	_, err := NewBuilder().Build(domain.Domain("kidney"), domain.ClinicalInputSet{})
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)
}

func TestDecodeReturnsNamedRecord(t *testing.T) {
	in := domain.ClinicalInputSet{
		"age": 45, "gender": "Female", "on_thyroxine": "Yes", "t3_measured": 1,
		"t3": 1.2, "tt4": 8.0, "tsh": 2.5,
	}

	rec, err := NewBuilder().Decode(domain.Thyroid, in)
	require.NoError(t, err)

	thyroid, ok := rec.(*ThyroidInputs)
	require.True(t, ok)
	assert.Equal(t, 45, thyroid.Age)
	assert.Equal(t, 0, thyroid.Gender)
	assert.Equal(t, 1, thyroid.OnThyroxine)
	assert.Equal(t, 2.5, thyroid.TSH)
}

func TestBuildIsPure(t *testing.T) {
	in := heartInputs()
	b := NewBuilder()

	first, err := b.Build(domain.Heart, in)
	require.NoError(t, err)
	second, err := b.Build(domain.Heart, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, in, 13, "inputs must not be modified")
}
