package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-risk-scorer/internal/domain"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		v        float64
		integer  bool
		expected string
	}{
		{50, true, "50"},
		{1, false, "1.0"},
		{2.35, false, "2.35"},
		{0.001, false, "0.001"},
		{-3.5, false, "-3.5"},
		{120, false, "120.0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatNumber(tt.v, tt.integer))
	}
}

func TestEchoHeart(t *testing.T) {
	vec, err := NewBuilder().Build(domain.Heart, heartInputs())
	require.NoError(t, err)

	echo, err := Echo(vec)
	require.NoError(t, err)
	require.Len(t, echo, 13)

	displays := make([]string, len(echo))
	for i, e := range echo {
		displays[i] = e.Display
	}
	assert.Equal(t, []string{
		"Age: 50",
		"Sex: Male",
		"Chest Pain Type: 0",
		"Resting Blood Pressure: 120 mm Hg",
		"Serum Cholesterol: 200 mg/dl",
		"Fasting Blood Sugar: No",
		"Resting Electrocardiographic Results: 0",
		"Maximum Heart Rate: 150",
		"Exercise Induced Angina: No",
		"ST Depression: 1.0",
		"Slope of Peak Exercise ST: 0",
		"Number of Major Vessels: 0",
		"Thalassemia: 0",
	}, displays)
	assert.Equal(t, "trestbps", echo[3].Key)
	assert.Equal(t, 120.0, echo[3].Value)
}

func TestEchoShapeMismatch(t *testing.T) {
	_, err := Echo(domain.FeatureVector{Domain: domain.Thyroid, Values: []float64{1, 2}})
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestSchemaFieldAliases(t *testing.T) {
	schema, err := SchemaFor(domain.Heart)
	require.NoError(t, err)

	f, ok := schema.Field("Resting-BP")
	require.True(t, ok)
	assert.Equal(t, "trestbps", f.Key)

	_, ok = schema.Field("weight")
	assert.False(t, ok)
}

func TestChoiceLabel(t *testing.T) {
	schema, err := SchemaFor(domain.Heart)
	require.NoError(t, err)
	cp, _ := schema.Field("cp")

	label, ok := cp.ChoiceLabel(3)
	assert.True(t, ok)
	assert.Equal(t, "Asymptomatic", label)

	_, ok = cp.ChoiceLabel(1.5)
	assert.False(t, ok)
	_, ok = cp.ChoiceLabel(4)
	assert.False(t, ok)
}
