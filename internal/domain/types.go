// Package domain contains the core entities shared by every layer of the
// risk scoring service: disease domains, feature vectors, classifier labels,
// verdicts and the evaluation result returned to callers.
//
// The package has no third-party dependencies so that it can be imported from
// storage, transport and model code alike.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain identifies one disease-prediction module.
type Domain string

const (
	Heart      Domain = "heart"
	Diabetes   Domain = "diabetes"
	Parkinsons Domain = "parkinsons"
	LungCancer Domain = "lung_cancer"
	Thyroid    Domain = "thyroid"
)

// AllDomains lists the domains in the order they are presented to users.
var AllDomains = []Domain{Heart, Diabetes, Parkinsons, LungCancer, Thyroid}

// Sentinel errors shared across packages.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownDomain     = errors.New("unknown domain")
	ErrModelNotLoaded    = errors.New("model not loaded")
	ErrShapeMismatch     = errors.New("feature vector shape mismatch")
	ErrMissingArtifact   = errors.New("model artifact missing")
	ErrUnexpectedLabel   = errors.New("classifier emitted an unexpected label")
	// ErrEvaluationTimeout marks an evaluation that ran past its own budget.
	ErrEvaluationTimeout = errors.New("evaluation timed out")
)

// IsValid reports whether d is one of the supported domains.
func (d Domain) IsValid() bool {
	switch d {
	case Heart, Diabetes, Parkinsons, LungCancer, Thyroid:
		return true
	default:
		return false
	}
}

// String returns the domain key.
func (d Domain) String() string {
	return string(d)
}

// DisplayName returns the human readable name of the domain.
func (d Domain) DisplayName() string {
	switch d {
	case Heart:
		return "Heart Disease"
	case Diabetes:
		return "Diabetes"
	case Parkinsons:
		return "Parkinson's Disease"
	case LungCancer:
		return "Lung Cancer"
	case Thyroid:
		return "Thyroid Disease"
	default:
		return string(d)
	}
}

// Tiered reports whether the domain produces a three-tier verdict instead of a
// binary one.
func (d Domain) Tiered() bool {
	return d == Thyroid
}

// ParseDomain resolves a user supplied domain key. Hyphens, spaces and case
// are tolerated so that "Lung-Cancer" resolves to LungCancer.
func ParseDomain(s string) (Domain, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_", "'", "").Replace(key)
	switch key {
	case "heart", "heart_disease":
		return Heart, nil
	case "diabetes":
		return Diabetes, nil
	case "parkinsons", "parkinson":
		return Parkinsons, nil
	case "lung_cancer", "lung", "lungs":
		return LungCancer, nil
	case "thyroid":
		return Thyroid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

// Label is the discrete output of a classifier. Every classifier in this
// system is binary; the meaning of 0 and 1 is domain specific.
type Label int

// PositiveLabel returns the label that the domain's classifier emits for a
// positive (abnormal) finding. The thyroid model emits 0 for a positive
// finding, the inverse of every other domain, and this is kept as emitted.
func PositiveLabel(d Domain) Label {
	if d == Thyroid {
		return 0
	}
	return 1
}

// IsPositive reports whether l is the positive label for domain d.
func (l Label) IsPositive(d Domain) bool {
	return l == PositiveLabel(d)
}

// Verdict is the outcome presented to the user.
type Verdict string

const (
	VerdictPositive Verdict = "Positive"
	VerdictNegative Verdict = "Negative"
	VerdictLow      Verdict = "Low"
	VerdictModerate Verdict = "Moderate"
	VerdictHigh     Verdict = "High"
)

// IsValid reports whether v is a known verdict.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictPositive, VerdictNegative, VerdictLow, VerdictModerate, VerdictHigh:
		return true
	default:
		return false
	}
}

// String returns the verdict name.
func (v Verdict) String() string {
	return string(v)
}

// ValidFor reports whether v is a verdict the given domain can produce.
func (v Verdict) ValidFor(d Domain) bool {
	if d.Tiered() {
		return v == VerdictLow || v == VerdictModerate || v == VerdictHigh
	}
	return v == VerdictPositive || v == VerdictNegative
}

// BinaryVerdict maps a classifier label to the verdict of a binary domain.
func BinaryVerdict(d Domain, l Label) Verdict {
	if l.IsPositive(d) {
		return VerdictPositive
	}
	return VerdictNegative
}

// ClinicalInputSet holds the raw inputs of one submitted form, keyed by field
// name. Values are typically float64 (decoded JSON numbers) but may also be
// integers, booleans, numeric strings or a field's choice label.
type ClinicalInputSet map[string]any

// FeatureVector is the ordered numeric input of a classifier. Names carries the
// field key of each position so that order can be verified against a model's
// declared feature list.
type FeatureVector struct {
	Domain Domain    `json:"domain"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Len returns the number of positions in the vector.
func (v FeatureVector) Len() int {
	return len(v.Values)
}

// Value returns the value stored under the given field name.
func (v FeatureVector) Value(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name && i < len(v.Values) {
			return v.Values[i], true
		}
	}
	return 0, false
}
