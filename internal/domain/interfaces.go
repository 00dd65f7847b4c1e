package domain

import (
	"context"
)

// RiskEvaluator runs the full evaluation pipeline for one submitted form.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, d Domain, inputs ClinicalInputSet, opts EvaluationOptions) (*Evaluation, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetModelsConfig() *ModelsConfig
	GetDatabaseConfig() *DatabaseConfig
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
