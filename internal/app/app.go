// Package app assembles the evaluator and its optional dependencies from
// configuration. Every entry point builds its process through New.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/audit"
	"github.com/clinical-risk-scorer/internal/cache"
	"github.com/clinical-risk-scorer/internal/config"
	"github.com/clinical-risk-scorer/internal/database"
	"github.com/clinical-risk-scorer/internal/model"
	"github.com/clinical-risk-scorer/internal/repository"
	"github.com/clinical-risk-scorer/internal/service"
)

// App holds the wired components of one process.
type App struct {
	Config    *config.Manager
	Logger    *logrus.Logger
	Registry  *model.Registry
	Cache     *cache.PredictionCache
	Audit     audit.Store
	Evaluator *service.Evaluator

	closers []func()
}

// Options selects which optional components New builds.
type Options struct {
	// SkipCache builds the evaluator without prediction memoization.
	SkipCache bool
	// SkipAudit builds the evaluator without an audit trail regardless of
	// the configured backend.
	SkipAudit bool
}

// New loads the model registry and wires the cache and audit store the
// configuration asks for. A failure closes whatever was already opened.
func New(ctx context.Context, mgr *config.Manager, logger *logrus.Logger, opts Options) (*App, error) {
	cfg := mgr.GetConfig()
	a := &App{Config: mgr, Logger: logger}

	registry, err := LoadRegistry(mgr, logger)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	if cfg.Cache.Enabled && !opts.SkipCache {
		c, err := cache.New(ctx, cfg.Cache, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create prediction cache: %w", err)
		}
		a.Cache = c
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	if !opts.SkipAudit {
		store, closeStore, err := OpenAudit(ctx, mgr, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if store != nil {
			a.Audit = store
			a.closers = append(a.closers, closeStore)
		}
	}

	a.Evaluator = service.NewEvaluator(registry, service.Options{
		Cache:   a.Cache,
		Audit:   a.Audit,
		Timeout: cfg.Evaluation.Timeout,
		Logger:  logger,
	})
	return a, nil
}

// Close releases the cache and audit store in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// LoadRegistry loads every configured model artifact.
func LoadRegistry(mgr *config.Manager, logger *logrus.Logger) (*model.Registry, error) {
	mc := mgr.GetModelsConfig()
	registry, err := model.LoadRegistry(mc.Dir, mc.Files, model.BackendOptions{
		RemoteTimeout:       mc.RemoteTimeout,
		BreakerMaxFailures:  mc.BreakerMaxFailures,
		BreakerOpenInterval: mc.BreakerOpenInterval,
		Logger:              logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	return registry, nil
}

// OpenAudit opens the configured audit backend. It returns a nil store for
// the "none" backend. The returned func closes everything that was opened.
func OpenAudit(ctx context.Context, mgr *config.Manager, logger *logrus.Logger) (audit.Store, func(), error) {
	cfg := mgr.GetConfig()

	switch strings.ToLower(cfg.Audit.Backend) {
	case config.AuditBackendNone:
		logger.Info("Audit trail disabled")
		return nil, func() {}, nil

	case config.AuditBackendPostgres:
		if cfg.Database.AutoMigrate {
			if err := MigratePostgres(ctx, mgr, logger); err != nil {
				return nil, nil, err
			}
		}
		db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect audit database: %w", err)
		}
		repo := repository.NewAuditRepository(db.Pool, logger)
		return repo, db.Close, nil

	case config.AuditBackendSQLite, "":
		if err := mgr.EnsureDataDir(); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := audit.NewSQLiteStore(ctx, mgr.AuditDBPath(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported audit backend %q", cfg.Audit.Backend)
	}
}

// MigratePostgres applies the embedded PostgreSQL migrations.
func MigratePostgres(ctx context.Context, mgr *config.Manager, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(mgr.GetDatabaseURL(), logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	defer runner.Close()
	if err := runner.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
