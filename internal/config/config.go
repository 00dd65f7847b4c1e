// Package config loads the risk scorer configuration from defaults, an
// optional config.yaml, a .env file and RISKSCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/clinical-risk-scorer/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. RISKSCORE_SERVER_PORT.
const EnvPrefix = "RISKSCORE"

// Audit backends.
const (
	AuditBackendSQLite   = "sqlite"
	AuditBackendPostgres = "postgres"
	AuditBackendNone     = "none"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

var _ domain.ConfigManager = (*Manager)(nil)

// Options controls where the manager looks for configuration.
type Options struct {
	// ConfigFile, when set, is read instead of searching for config.yaml.
	ConfigFile string
	// EnvFile is loaded into the process environment before the environment
	// is read. Defaults to ".env"; a missing file is not an error.
	EnvFile string
	// SearchPaths replaces the default config.yaml search paths.
	SearchPaths []string
}

// NewManager creates a new configuration manager with the default options
func NewManager() (*Manager, error) {
	return NewManagerWithOptions(Options{})
}

// NewManagerWithOptions creates a configuration manager from opts.
func NewManagerWithOptions(opts Options) (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(opts); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(opts Options) error {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", envFile, err)
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if paths == nil {
			paths = []string{".", "./config", "/etc/clinical-risk-scorer/"}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The config file is optional; defaults and env vars are enough.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("data_dir", DefaultDataDir())

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.max_body_bytes", 1<<20)

	// Model defaults
	v.SetDefault("models.dir", "./models")
	v.SetDefault("models.remote_timeout", "5s")
	v.SetDefault("models.breaker_max_failures", 5)
	v.SetDefault("models.breaker_open_interval", "30s")

	v.SetDefault("evaluation.timeout", "10s")

	// Audit defaults
	v.SetDefault("audit.backend", AuditBackendSQLite)
	v.SetDefault("audit.sqlite_path", "")
	v.SetDefault("audit.retention_days", 365)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "clinical_risk")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")
	v.SetDefault("database.auto_migrate", true)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.memory_size", 1024)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.max_clients", 10000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("mcp.server_name", "clinical-risk-scorer")
	v.SetDefault("mcp.server_version", "v1.0.0")
}

// DefaultDataDir returns ~/.clinical-risk-scorer, or a relative directory
// when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clinical-risk-scorer"
	}
	return filepath.Join(home, ".clinical-risk-scorer")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetModelsConfig returns model artifact configuration
func (m *Manager) GetModelsConfig() *domain.ModelsConfig {
	return &m.config.Models
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// Viper exposes the underlying viper instance, e.g. for binding CLI flags.
func (m *Manager) Viper() *viper.Viper {
	return m.v
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid max body bytes: %d", config.Server.MaxBodyBytes)
	}

	if config.Models.Dir == "" {
		return fmt.Errorf("models directory is required")
	}
	for key := range config.Models.Files {
		if _, err := domain.ParseDomain(key); err != nil {
			return fmt.Errorf("invalid model file mapping: %w", err)
		}
	}

	if config.Evaluation.Timeout < 0 {
		return fmt.Errorf("invalid evaluation timeout: %s", config.Evaluation.Timeout)
	}

	switch strings.ToLower(config.Audit.Backend) {
	case AuditBackendSQLite, AuditBackendNone:
	case AuditBackendPostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid audit backend: %s", config.Audit.Backend)
	}
	if config.Audit.RetentionDays < 0 {
		return fmt.Errorf("invalid audit retention: %d days", config.Audit.RetentionDays)
	}

	if config.Cache.Enabled && config.Cache.RedisURL != "" {
		if _, err := url.Parse(config.Cache.RedisURL); err != nil {
			return fmt.Errorf("invalid Redis URL: %w", err)
		}
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requires a positive requests_per_second")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection string in URL form, as
// golang-migrate expects it.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Database,
		RawQuery: "sslmode=" + url.QueryEscape(db.SSLMode),
	}
	return u.String()
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

// AuditDBPath returns the path of the embedded audit database.
func (m *Manager) AuditDBPath() string {
	if m.config.Audit.SQLitePath != "" {
		return m.config.Audit.SQLitePath
	}
	return filepath.Join(m.config.DataDir, "audit.db")
}

// ExportDir returns the directory for JSON audit exports.
func (m *Manager) ExportDir() string {
	return filepath.Join(m.config.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (m *Manager) EnsureDataDir() error {
	if err := os.MkdirAll(m.config.DataDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(m.ExportDir(), 0o755)
}
