package model

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/features"
)

// Classifier is the opaque predict capability behind a handle.
type Classifier interface {
	Predict(ctx context.Context, x []float64) (domain.Label, error)
	Kind() string
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, x []float64) (domain.Label, error)

// Predict calls f(ctx, x).
func (f ClassifierFunc) Predict(ctx context.Context, x []float64) (domain.Label, error) {
	return f(ctx, x)
}

// Kind implements Classifier.
func (f ClassifierFunc) Kind() string {
	return "func"
}

// BackendOptions carries the process-level settings used when building
// backends from artifacts.
type BackendOptions struct {
	HTTPClient          *http.Client
	RemoteTimeout       time.Duration
	BreakerMaxFailures  uint32
	BreakerOpenInterval time.Duration
	Logger              *logrus.Logger
}

// NewClassifier builds the backend an artifact describes.
func NewClassifier(a *Artifact, opts BackendOptions) (Classifier, error) {
	var c Classifier
	switch a.Kind {
	case KindLogistic:
		c = newLogistic(a.Logistic, [2]domain.Label{a.Classes[0], a.Classes[1]})
	case KindTree:
		c = newTree(a.Tree, [2]domain.Label{a.Classes[0], a.Classes[1]})
	case KindRemote:
		remote, err := NewRemoteClassifier(a.Name, a.ModelVersion, a.Remote, opts)
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", a.Kind)
	}

	if a.Scaler != nil {
		c = &scaled{scaler: a.Scaler, inner: c}
	}
	return c, nil
}

type scaled struct {
	scaler *Scaler
	inner  Classifier
}

func (s *scaled) Predict(ctx context.Context, x []float64) (domain.Label, error) {
	if len(x) != len(s.scaler.Mean) {
		return 0, fmt.Errorf("%w: scaler expects %d values, got %d", domain.ErrShapeMismatch, len(s.scaler.Mean), len(x))
	}
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = (v - s.scaler.Mean[i]) / s.scaler.Scale[i]
	}
	return s.inner.Predict(ctx, z)
}

func (s *scaled) Kind() string {
	return s.inner.Kind()
}

// HandleConfig describes a classifier handle.
type HandleConfig struct {
	Name     string
	Version  string
	Domain   domain.Domain
	Features []string // defaults to the domain schema order
	Classes  [2]domain.Label
}

// Handle is a named, immutable classifier bound to one domain. It is safe to
// share across goroutines.
type Handle struct {
	name     string
	version  string
	domain   domain.Domain
	features []string
	classes  [2]domain.Label
	backend  Classifier
}

// NewHandle wraps a backend in a handle.
func NewHandle(cfg HandleConfig, backend Classifier) *Handle {
	names := cfg.Features
	if len(names) == 0 {
		if schema, err := features.SchemaFor(cfg.Domain); err == nil {
			names = schema.Keys()
		}
	}
	return &Handle{
		name:     cfg.Name,
		version:  cfg.Version,
		domain:   cfg.Domain,
		features: append([]string(nil), names...),
		classes:  cfg.Classes,
		backend:  backend,
	}
}

// HandleFromArtifact builds the backend an artifact describes and wraps it in
// a handle.
func HandleFromArtifact(a *Artifact, opts BackendOptions) (*Handle, error) {
	backend, err := NewClassifier(a, opts)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
	}
	return NewHandle(HandleConfig{
		Name:     a.Name,
		Version:  a.ModelVersion,
		Domain:   a.Domain,
		Features: a.Features,
		Classes:  [2]domain.Label{a.Classes[0], a.Classes[1]},
	}, backend), nil
}

func (h *Handle) Name() string          { return h.name }
func (h *Handle) Version() string       { return h.version }
func (h *Handle) Domain() domain.Domain { return h.domain }

// Kind returns the backend kind, or "none" when the handle has no backend.
func (h *Handle) Kind() string {
	if h.backend == nil {
		return "none"
	}
	return h.backend.Kind()
}

// Features returns a copy of the declared feature order.
func (h *Handle) Features() []string {
	return append([]string(nil), h.features...)
}

// Classes returns the two labels the classifier may emit.
func (h *Handle) Classes() [2]domain.Label {
	return h.classes
}

// Info returns the identification attached to evaluations.
func (h *Handle) Info() domain.ModelInfo {
	return domain.ModelInfo{Name: h.name, Version: h.version, Backend: h.Kind()}
}

func (h *Handle) emits(l domain.Label) bool {
	return l == h.classes[0] || l == h.classes[1]
}
