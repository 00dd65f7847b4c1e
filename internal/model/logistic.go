package model

import (
	"context"
	"fmt"
	"math"

	"github.com/clinical-risk-scorer/internal/domain"
)

const defaultThreshold = 0.5

type logistic struct {
	coef      []float64
	intercept float64
	threshold float64
	classes   [2]domain.Label
}

func newLogistic(p *LogisticParams, classes [2]domain.Label) *logistic {
	threshold := p.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	return &logistic{
		coef:      append([]float64(nil), p.Coefficients...),
		intercept: p.Intercept,
		threshold: threshold,
		classes:   classes,
	}
}

// Probability returns the probability of the second class.
func (l *logistic) Probability(x []float64) (float64, error) {
	if len(x) != len(l.coef) {
		return 0, fmt.Errorf("%w: logistic model expects %d values, got %d", domain.ErrShapeMismatch, len(l.coef), len(x))
	}
	z := l.intercept
	for i, c := range l.coef {
		z += c * x[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

func (l *logistic) Predict(_ context.Context, x []float64) (domain.Label, error) {
	p, err := l.Probability(x)
	if err != nil {
		return 0, err
	}
	if p >= l.threshold {
		return l.classes[1], nil
	}
	return l.classes[0], nil
}

func (l *logistic) Kind() string {
	return KindLogistic
}
