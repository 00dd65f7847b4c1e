package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/clinical-risk-scorer/internal/domain"
)

// Builder validates raw inputs and produces feature vectors. It holds no
// state and is safe for concurrent use.
type Builder struct{}

// NewBuilder creates a new feature vector builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build validates inputs against the domain schema and returns the ordered
// vector. It fails with a SchemaError for missing, undeclared, duplicated or
// malformed fields and with a RangeError for out-of-bounds values.
func (b *Builder) Build(d domain.Domain, inputs domain.ClinicalInputSet) (domain.FeatureVector, error) {
	rec, err := b.Decode(d, inputs)
	if err != nil {
		return domain.FeatureVector{}, err
	}
	return VectorOf(d, rec)
}

// Decode validates inputs and decodes them into the domain's named record.
func (b *Builder) Decode(d domain.Domain, inputs domain.ClinicalInputSet) (Record, error) {
	schema, err := SchemaFor(d)
	if err != nil {
		return nil, err
	}

	values, err := normalize(schema, inputs)
	if err != nil {
		return nil, err
	}

	rec, _ := newRecord(d)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "mapstructure",
		ErrorUnused: true,
		ErrorUnset:  true,
		Result:      rec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return nil, domain.NewSchemaError(d, "", err.Error())
	}
	return rec, nil
}

// VectorOf converts a decoded record into a FeatureVector and checks that its
// length matches the schema.
func VectorOf(d domain.Domain, rec Record) (domain.FeatureVector, error) {
	schema, err := SchemaFor(d)
	if err != nil {
		return domain.FeatureVector{}, err
	}
	values := rec.ToVector()
	if len(values) != schema.Len() {
		return domain.FeatureVector{}, fmt.Errorf("%w: %s record yields %d values, schema declares %d",
			domain.ErrShapeMismatch, d, len(values), schema.Len())
	}
	return domain.FeatureVector{Domain: d, Names: schema.Keys(), Values: values}, nil
}

// normalize resolves aliases, coerces every value to a number and enforces
// presence, integrality and bounds. Problems are reported in a deterministic
// order: undeclared fields first, then missing fields in schema order, then
// value errors in schema order.
func normalize(s *Schema, inputs domain.ClinicalInputSet) (map[string]any, error) {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	raw := make(map[string]any, len(inputs))
	source := make(map[string]string, len(inputs))
	for _, name := range names {
		f, ok := s.Field(name)
		if !ok {
			return nil, domain.NewSchemaError(s.Domain, name, "undeclared field")
		}
		if prev, dup := source[f.Key]; dup {
			return nil, domain.NewSchemaError(s.Domain, f.Key,
				fmt.Sprintf("supplied more than once (as '%s' and '%s')", prev, name))
		}
		source[f.Key] = name
		raw[f.Key] = inputs[name]
	}

	for _, f := range s.Fields {
		if _, ok := raw[f.Key]; !ok {
			return nil, domain.NewSchemaError(s.Domain, f.Key, "required field is missing")
		}
	}

	out := make(map[string]any, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		v, err := coerce(f, raw[f.Key])
		if err != nil {
			return nil, domain.NewSchemaError(s.Domain, f.Key, err.Error())
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < f.Min || v > f.Max {
			return nil, domain.NewRangeError(s.Domain, f.Key, v, f.Min, f.Max)
		}
		if f.Integer {
			if v != math.Trunc(v) {
				return nil, domain.NewSchemaError(s.Domain, f.Key,
					fmt.Sprintf("must be an integer, got %s", strconv.FormatFloat(v, 'f', -1, 64)))
			}
			out[f.Key] = int(v)
			continue
		}
		out[f.Key] = v
	}
	return out, nil
}

func coerce(f *FieldSpec, v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("value is null")
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("malformed number %q", x.String())
		}
		return n, nil
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, nil
		}
		if n, ok := f.ChoiceValue(s); ok {
			return n, nil
		}
		if len(f.Choices) > 0 {
			return 0, fmt.Errorf("malformed value %q (expected a number or one of %s)", x, strings.Join(f.Choices, ", "))
		}
		return 0, fmt.Errorf("malformed value %q (expected a number)", x)
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
