package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinical-risk-scorer/internal/domain"
)

const (
	defaultRemoteTimeout       = 5 * time.Second
	defaultBreakerMaxFailures  = 5
	defaultBreakerOpenInterval = 30 * time.Second
)

// RemoteClassifier delegates prediction to an HTTP inference endpoint. Calls
// go through a circuit breaker and are never retried.
type RemoteClassifier struct {
	name       string
	version    string
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

type remoteRequest struct {
	Model        string    `json:"model"`
	ModelVersion string    `json:"model_version"`
	Features     []float64 `json:"features"`
}

type remoteResponse struct {
	Label *int   `json:"label"`
	Error string `json:"error,omitempty"`
}

// NewRemoteClassifier creates a remote backend. The artifact timeout wins
// over the process-level one.
func NewRemoteClassifier(name, version string, p *RemoteParams, opts BackendOptions) (*RemoteClassifier, error) {
	timeout, err := p.RemoteTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid remote timeout: %w", err)
	}
	if timeout == 0 {
		timeout = opts.RemoteTimeout
	}
	if timeout == 0 {
		timeout = defaultRemoteTimeout
	}

	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	openInterval := opts.BreakerOpenInterval
	if openInterval == 0 {
		openInterval = defaultBreakerOpenInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	settings := gobreaker.Settings{
		Name:        "model:" + name,
		MaxRequests: 1,
		Timeout:     openInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &RemoteClassifier{
		name:       name,
		version:    version,
		endpoint:   p.Endpoint,
		timeout:    timeout,
		httpClient: httpClient,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}, nil
}

// Predict posts the vector to the endpoint and returns the label it reports.
func (r *RemoteClassifier) Predict(ctx context.Context, x []float64) (domain.Label, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.call(ctx, x)
	})
	if err != nil {
		return 0, fmt.Errorf("remote model %s: %w", r.name, err)
	}
	return result.(domain.Label), nil
}

func (r *RemoteClassifier) call(ctx context.Context, x []float64) (domain.Label, error) {
	body, err := json.Marshal(remoteRequest{Model: r.name, ModelVersion: r.version, Features: x})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	var decoded remoteResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != "" {
		return 0, fmt.Errorf("endpoint reported error: %s", decoded.Error)
	}
	if decoded.Label == nil {
		return 0, fmt.Errorf("endpoint response has no label")
	}
	return domain.Label(*decoded.Label), nil
}

func (r *RemoteClassifier) Kind() string {
	return KindRemote
}

// State reports the circuit breaker state.
func (r *RemoteClassifier) State() string {
	return r.breaker.State().String()
}
