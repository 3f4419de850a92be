// Package config provides configuration loading and management for the sync agent.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fieldops/fieldsync/internal/telemetry"
)

const (
	// StorageTypeSQLite keeps the local store in an on-device SQLite file
	StorageTypeSQLite = "sqlite"

	// StorageTypePostgres keeps the local store in a shared PostgreSQL database
	StorageTypePostgres = "postgres"

	// StorageTypeMemory keeps the local store in process memory
	StorageTypeMemory = "memory"
)

// EnvPrefix is the prefix of environment variables read by the agent
const EnvPrefix = "FIELDSYNC"

const (
	// DefaultEntity is synced when no entity types are configured
	DefaultEntity = "work_orders"

	// DefaultSyncInterval is the periodic trigger interval
	DefaultSyncInterval = 5 * time.Minute

	// DefaultPullPageSize is the page size requested from the pull endpoint
	DefaultPullPageSize = 100

	// DefaultMaxPullPages bounds the pages fetched per entity in one cycle
	DefaultMaxPullPages = 10

	// DefaultProbeInterval is how often the connectivity monitor pings the server
	DefaultProbeInterval = 30 * time.Second

	// DefaultAPIAddress is the listen address of the local control API
	DefaultAPIAddress = "127.0.0.1:7420"

	// DefaultSQLitePath is the on-device database file
	DefaultSQLitePath = "./data/fieldsync.db"

	// DefaultStatusDir holds the per-tenant status files
	DefaultStatusDir = "./data/status"

	// PasswordEnvVar is read when no password file is configured
	PasswordEnvVar = "FIELDSYNC_DATABASE_PASSWORD"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// AgentName identifies this agent in logs and telemetry.
	// Defaults to "fieldsync" if not specified
	AgentName string `yaml:"agentName,omitempty"`

	Server  ServerConfig   `yaml:"server"`
	Tenants []TenantConfig `yaml:"tenants" validate:"required,min=1,dive"`

	// Entities lists the entity types pulled for every tenant.
	// Defaults to ["work_orders"]
	Entities []string `yaml:"entities,omitempty" validate:"dive,required"`

	Sync         *SyncPolicyConfig   `yaml:"sync,omitempty"`
	Retry        *RetryConfig        `yaml:"retry,omitempty"`
	Connectivity *ConnectivityConfig `yaml:"connectivity,omitempty"`
	Storage      StorageConfig       `yaml:"storage"`
	API          *APIConfig          `yaml:"api,omitempty"`
	Telemetry    *telemetry.Config   `yaml:"telemetry,omitempty"`
}

// ServerConfig describes the remote sync server
type ServerConfig struct {
	// Endpoint is the base URL of the sync API, e.g. "https://sync.example.com/api"
	Endpoint string `yaml:"endpoint" validate:"required,url"`

	// Timeout bounds a single HTTP request (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// TenantNotResolvedMarker is matched case-insensitively against error bodies
	TenantNotResolvedMarker string `yaml:"tenantNotResolvedMarker,omitempty"`

	// NotifyURL is the optional websocket endpoint for change notifications
	NotifyURL string `yaml:"notifyURL,omitempty" validate:"omitempty,url"`

	// TokenFile holds a bearer token sent with every request
	TokenFile string `yaml:"tokenFile,omitempty"`

	// MaxResponseBytes caps response bodies read from the server
	MaxResponseBytes int64 `yaml:"maxResponseBytes,omitempty" validate:"omitempty,gte=1024"`
}

// TenantConfig selects a tenant to keep in sync
type TenantConfig struct {
	ID string `yaml:"id" validate:"required"`

	// Entities overrides the global entity list for this tenant
	Entities []string `yaml:"entities,omitempty" validate:"dive,required"`
}

// SyncPolicyConfig defines synchronization settings
type SyncPolicyConfig struct {
	Interval     string `yaml:"interval,omitempty"`
	PullPageSize int    `yaml:"pullPageSize,omitempty" validate:"omitempty,gte=1,lte=1000"`
	MaxPullPages int    `yaml:"maxPullPages,omitempty" validate:"omitempty,gte=1"`
}

// RetryConfig configures the backoff applied to every network call
type RetryConfig struct {
	InitialDelay string   `yaml:"initialDelay,omitempty"`
	Factor       float64  `yaml:"factor,omitempty" validate:"omitempty,gte=1"`
	MaxDelay     string   `yaml:"maxDelay,omitempty"`
	MaxAttempts  int      `yaml:"maxAttempts,omitempty" validate:"omitempty,gte=1"`
	Jitter       *float64 `yaml:"jitter,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// ConnectivityConfig configures the online/offline probe
type ConnectivityConfig struct {
	ProbeInterval string `yaml:"probeInterval,omitempty"`
}

// StorageConfig selects the local store
type StorageConfig struct {
	// Type is one of sqlite, postgres or memory. Defaults to sqlite
	Type     string          `yaml:"type,omitempty" validate:"omitempty,oneof=sqlite postgres memory"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// StatusDir is where per-tenant sync status files are written
	StatusDir string `yaml:"statusDir,omitempty"`
}

// SQLiteConfig defines the on-device database
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines the local control API
type APIConfig struct {
	Address string `yaml:"address,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from FIELDSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", PasswordEnvVar,
	)
}

// GetConnectionString builds a PostgreSQL connection URL.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=10",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate runs the struct-tag rules followed by the cross-field checks
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Tenants))
	for i, tenant := range c.Tenants {
		if seen[tenant.ID] {
			return fmt.Errorf("tenants[%d]: duplicate tenant id '%s'", i, tenant.ID)
		}
		seen[tenant.ID] = true
	}

	var errs []error
	durations := map[string]string{
		"server.timeout": c.Server.Timeout,
	}
	if c.Sync != nil {
		durations["sync.interval"] = c.Sync.Interval
	}
	if c.Retry != nil {
		durations["retry.initialDelay"] = c.Retry.InitialDelay
		durations["retry.maxDelay"] = c.Retry.MaxDelay
	}
	if c.Connectivity != nil {
		durations["connectivity.probeInterval"] = c.Connectivity.ProbeInterval
	}
	if c.Storage.Database != nil {
		durations["storage.database.connMaxLifetime"] = c.Storage.Database.ConnMaxLifetime
	}
	for field, value := range durations {
		if err := validateDuration(field, value); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if c.GetStorageType() == StorageTypePostgres && c.Storage.Database == nil {
		return fmt.Errorf("storage.database is required when storage.type is %s", StorageTypePostgres)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '5m'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

// GetAgentName returns the agent name, using "fieldsync" if not specified
func (c *Config) GetAgentName() string {
	if c.AgentName == "" {
		return "fieldsync"
	}
	return c.AgentName
}

// TenantIDs returns the configured tenants in file order
func (c *Config) TenantIDs() []string {
	ids := make([]string, 0, len(c.Tenants))
	for _, t := range c.Tenants {
		ids = append(ids, t.ID)
	}
	return ids
}

// EntitiesFor returns the entity types synced for a tenant
func (c *Config) EntitiesFor(tenantID string) []string {
	for _, t := range c.Tenants {
		if t.ID == tenantID && len(t.Entities) > 0 {
			return t.Entities
		}
	}
	if len(c.Entities) > 0 {
		return c.Entities
	}
	return []string{DefaultEntity}
}

// GetSyncInterval returns the periodic sync interval
func (c *Config) GetSyncInterval() time.Duration {
	if c.Sync == nil {
		return DefaultSyncInterval
	}
	return durationOr(c.Sync.Interval, DefaultSyncInterval)
}

// GetPullPageSize returns the pull page size
func (c *Config) GetPullPageSize() int {
	if c.Sync == nil || c.Sync.PullPageSize == 0 {
		return DefaultPullPageSize
	}
	return c.Sync.PullPageSize
}

// GetMaxPullPages returns the page bound per entity and cycle
func (c *Config) GetMaxPullPages() int {
	if c.Sync == nil || c.Sync.MaxPullPages == 0 {
		return DefaultMaxPullPages
	}
	return c.Sync.MaxPullPages
}

// GetServerTimeout returns the per-request timeout, zero meaning the client default
func (c *Config) GetServerTimeout() time.Duration {
	return durationOr(c.Server.Timeout, 0)
}

// GetProbeInterval returns the connectivity probe interval
func (c *Config) GetProbeInterval() time.Duration {
	if c.Connectivity == nil {
		return DefaultProbeInterval
	}
	return durationOr(c.Connectivity.ProbeInterval, DefaultProbeInterval)
}

// GetStorageType returns the storage type, using sqlite if not specified
func (c *Config) GetStorageType() string {
	if c.Storage.Type == "" {
		return StorageTypeSQLite
	}
	return c.Storage.Type
}

// GetSQLitePath returns the on-device database path
func (c *Config) GetSQLitePath() string {
	if c.Storage.SQLite == nil || c.Storage.SQLite.Path == "" {
		return DefaultSQLitePath
	}
	return c.Storage.SQLite.Path
}

// GetStatusDir returns the directory for status files
func (c *Config) GetStatusDir() string {
	if c.Storage.StatusDir == "" {
		return DefaultStatusDir
	}
	return c.Storage.StatusDir
}

// GetAPIAddress returns the control API listen address
func (c *Config) GetAPIAddress() string {
	if c.API == nil || c.API.Address == "" {
		return DefaultAPIAddress
	}
	return c.API.Address
}

// GetInitialDelay returns the configured first retry delay, zero meaning the executor default
func (r *RetryConfig) GetInitialDelay() time.Duration {
	if r == nil {
		return 0
	}
	return durationOr(r.InitialDelay, 0)
}

// GetMaxDelay returns the configured retry delay cap, zero meaning the executor default
func (r *RetryConfig) GetMaxDelay() time.Duration {
	if r == nil {
		return 0
	}
	return durationOr(r.MaxDelay, 0)
}

// durationOr parses value, falling back when it is empty or invalid.
// Values are checked in validate, so the fallback only covers unset fields.
func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
