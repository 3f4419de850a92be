package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	_ "github.com/mattn/go-sqlite3"    // registers the sqlite3 database/sql driver

	"github.com/fieldops/fieldsync/database"
	"github.com/fieldops/fieldsync/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	sqliteBusyTimeoutMs    = 5000
)

// OpenSQLite opens (creating if needed) the on-device database at path and
// applies migrations
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := ConnectSQLite(path)
	if err != nil {
		return nil, err
	}
	s, err := open(ctx, db, database.DialectSQLite)
	if err != nil {
		return nil, err
	}
	slog.Info("Local sqlite store ready", "path", path)
	return s, nil
}

// ConnectSQLite opens the on-device database without migrating it
func ConnectSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d&_journal_mode=WAL", path, sqliteBusyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Single writer; also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenPostgres connects to a shared Postgres store and applies migrations
func OpenPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	db, err := ConnectPostgres(cfg)
	if err != nil {
		return nil, err
	}
	s, err := open(ctx, db, database.DialectPostgres)
	if err != nil {
		return nil, err
	}
	slog.Info("Postgres store ready",
		"user", cfg.User,
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database)
	return s, nil
}

// ConnectPostgres opens a connection pool without migrating the schema
func ConnectPostgres(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("database host is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("database port is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("database user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}

	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = defaultMaxOpenConns
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = defaultMaxIdleConns
	}
	connMaxLifetime := defaultConnMaxLifetime
	if cfg.ConnMaxLifetime != "" {
		d, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid connection max lifetime: %w", err)
		}
		connMaxLifetime = d
	}

	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to get database password: %w", err)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// open pings db, migrates it and wraps it. db is closed on failure.
func open(ctx context.Context, db *sql.DB, dialect database.Dialect) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := database.MigrateUp(db, dialect); err != nil {
		closeQuietly(db)
		return nil, err
	}
	return New(db, dialect), nil
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}
}
