// Package modeltest provides classifier registries and sample inputs for
// tests of packages that sit on top of the model registry.
package modeltest

import (
	"context"
	"math"
	"testing"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/features"
	"github.com/clinical-risk-scorer/internal/model"
)

// Registry returns a registry with one handle per domain, all backed by fn.
func Registry(t testing.TB, fn model.ClassifierFunc) *model.Registry {
	t.Helper()
	handles := make([]*model.Handle, 0, len(domain.AllDomains))
	for _, d := range domain.AllDomains {
		handles = append(handles, model.NewHandle(model.HandleConfig{
			Name:    string(d),
			Version: "test",
			Domain:  d,
			Classes: [2]domain.Label{0, 1},
		}, fn))
	}
	reg, err := model.NewRegistry(handles...)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return reg
}

// Constant returns a classifier that always emits label.
func Constant(label domain.Label) model.ClassifierFunc {
	return func(context.Context, []float64) (domain.Label, error) {
		return label, nil
	}
}

// HeartInputs is a complete, in-range heart submission.
func HeartInputs() domain.ClinicalInputSet {
	return domain.ClinicalInputSet{
		"age": 50.0, "sex": 1.0, "cp": 0.0, "trestbps": 120.0, "chol": 200.0,
		"fbs": 0.0, "restecg": 0.0, "thalach": 150.0, "exang": 0.0,
		"oldpeak": 1.0, "slope": 0.0, "ca": 0.0, "thal": 0.0,
	}
}

// ThyroidInputs is a complete thyroid submission with the given labs.
func ThyroidInputs(tsh, t3, tt4 float64) domain.ClinicalInputSet {
	return domain.ClinicalInputSet{
		"age": 45.0, "gender": 0.0, "on_thyroxine": 0.0, "t3_measured": 1.0,
		"t3": t3, "tt4": tt4, "tsh": tsh,
	}
}

// MidInputs fills every field of d with a value inside its bounds.
func MidInputs(t testing.TB, d domain.Domain) domain.ClinicalInputSet {
	t.Helper()
	schema, err := features.SchemaFor(d)
	if err != nil {
		t.Fatalf("schema for %s: %v", d, err)
	}
	in := domain.ClinicalInputSet{}
	for _, f := range schema.Fields {
		v := (f.Min + f.Max) / 2
		if f.Integer {
			v = math.Floor(v)
		}
		in[f.Key] = v
	}
	return in
}
