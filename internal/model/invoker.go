package model

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
)

// Invoker calls classifiers and turns every fault into an InferenceError.
type Invoker struct {
	logger *logrus.Logger
}

// NewInvoker creates a new classifier invoker
func NewInvoker(logger *logrus.Logger) *Invoker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Invoker{logger: logger}
}

// Predict runs h on vec. A missing handle, a vector that does not match the
// handle's declared features, a backend error, a panic inside the backend
// and a label outside the handle's classes all yield an InferenceError. The
// call is never retried.
func (inv *Invoker) Predict(ctx context.Context, h *Handle, vec domain.FeatureVector) (label domain.Label, err error) {
	if h == nil {
		return 0, domain.NewInferenceError(vec.Domain, "", domain.ErrModelNotLoaded)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			label = 0
			err = domain.NewInferenceError(vec.Domain, h.Name(), fmt.Errorf("classifier panicked: %v", r))
		}
		fields := logrus.Fields{
			"domain":   vec.Domain,
			"model":    h.Name(),
			"backend":  h.Kind(),
			"duration": time.Since(start),
		}
		if err != nil {
			inv.logger.WithFields(fields).WithError(err).Warn("Inference failed")
			return
		}
		inv.logger.WithFields(fields).WithField("label", int(label)).Debug("Inference completed")
	}()

	if h.backend == nil {
		return 0, domain.NewInferenceError(vec.Domain, h.Name(), domain.ErrModelNotLoaded)
	}
	if err := checkShape(h, vec); err != nil {
		return 0, domain.NewInferenceError(vec.Domain, h.Name(), err)
	}

	label, err = h.backend.Predict(ctx, append([]float64(nil), vec.Values...))
	if err != nil {
		return 0, domain.NewInferenceError(vec.Domain, h.Name(), err)
	}
	if !h.emits(label) {
		return 0, domain.NewInferenceError(vec.Domain, h.Name(),
			fmt.Errorf("%w: %d (classes %v)", domain.ErrUnexpectedLabel, label, h.classes))
	}
	return label, nil
}

func checkShape(h *Handle, vec domain.FeatureVector) error {
	if vec.Domain != h.domain {
		return fmt.Errorf("%w: vector for %s passed to %s model", domain.ErrShapeMismatch, vec.Domain, h.domain)
	}
	if len(vec.Values) != len(h.features) {
		return fmt.Errorf("%w: got %d values, model expects %d", domain.ErrShapeMismatch, len(vec.Values), len(h.features))
	}
	if len(vec.Names) > 0 {
		if len(vec.Names) != len(h.features) {
			return fmt.Errorf("%w: got %d names, model expects %d", domain.ErrShapeMismatch, len(vec.Names), len(h.features))
		}
		for i, n := range vec.Names {
			if n != h.features[i] {
				return fmt.Errorf("%w: position %d is %q, model expects %q", domain.ErrShapeMismatch, i, n, h.features[i])
			}
		}
	}
	return nil
}
