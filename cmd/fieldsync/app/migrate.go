package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/database"
	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/store/sqldb"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing the local store schema. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert database migrations",
		Long: `Revert database migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  fieldsync migrate down --config config.yaml --num-steps 1 --yes`,
		RunE: runMigrateDown,
	})
	return cmd
}

// connect opens the configured database without migrating it
func connect(cfg *config.Config) (*sql.DB, database.Dialect, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeSQLite:
		db, err := sqldb.ConnectSQLite(cfg.GetSQLitePath())
		return db, database.DialectSQLite, err
	case config.StorageTypePostgres:
		db, err := sqldb.ConnectPostgres(cfg.Storage.Database)
		return db, database.DialectPostgres, err
	default:
		return nil, "", fmt.Errorf("storage type %q has no schema to migrate", cfg.GetStorageType())
	}
}

// confirm asks before a destructive operation unless --yes was given
func confirm(cmd *cobra.Command, question string) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return true, nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Continue? (yes/no): ", question)
	var response string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	return response == "yes" || response == "y", nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, dialect, err := connect(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	slog.Info("Applying database migrations", "dialect", dialect)
	if err := database.MigrateUp(db, dialect); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logVersion(db, dialect)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	steps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	question := fmt.Sprintf("About to revert %d migration(s) of the %s store.", steps, cfg.GetStorageType())
	if steps == 0 {
		question = fmt.Sprintf("About to revert ALL migrations of the %s store. This destroys all local data.",
			cfg.GetStorageType())
	}
	ok, err := confirm(cmd, question)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	db, dialect, err := connect(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	if err := database.MigrateDown(db, dialect, int(steps)); err != nil { //nolint:gosec // steps is a small CLI value
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	logVersion(db, dialect)
	return nil
}

func logVersion(db *sql.DB, dialect database.Dialect) {
	m, err := database.NewMigrator(db, dialect)
	if err != nil {
		slog.Warn("Unable to get migration version", "error", err)
		return
	}
	version, dirty, err := m.Version()
	switch {
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state", "version", version)
	default:
		slog.Info("Migrations complete", "version", version)
	}
}
