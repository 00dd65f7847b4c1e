package features

import (
	"math"
	"strconv"

	"github.com/clinical-risk-scorer/internal/domain"
)

// FormatNumber renders v the way the input summary shows it: integer fields
// without a fractional part, other fields with at least one decimal place
// ("1.0", "2.35").
func FormatNumber(v float64, integer bool) string {
	if integer {
		return strconv.FormatInt(int64(v), 10)
	}
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Display renders one field value for the input summary.
func (f *FieldSpec) Display(v float64) string {
	if f.Echo == EchoChoice {
		if label, ok := f.ChoiceLabel(v); ok {
			return f.Label + ": " + label
		}
	}
	s := f.Label + ": " + FormatNumber(v, f.Integer)
	if f.Unit != "" {
		s += " " + f.Unit
	}
	return s
}

// Echo returns every input of vec in schema order, labelled for display.
func Echo(vec domain.FeatureVector) ([]domain.EchoField, error) {
	schema, err := SchemaFor(vec.Domain)
	if err != nil {
		return nil, err
	}
	if vec.Len() != schema.Len() {
		return nil, domain.ErrShapeMismatch
	}

	out := make([]domain.EchoField, schema.Len())
	for i := range schema.Fields {
		f := &schema.Fields[i]
		out[i] = domain.EchoField{
			Key:     f.Key,
			Label:   f.Label,
			Value:   vec.Values[i],
			Display: f.Display(vec.Values[i]),
		}
	}
	return out, nil
}
