package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/paper-digest-service/internal/database"
)

var migratePath string

func init() {
	migrateCmd.PersistentFlags().StringVar(&migratePath, "path", "", "Read migrations from this directory instead of the embedded set")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStepsCmd, migrateVersionCmd, migrateForceCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL report archive schema",
	Long: `Manage the PostgreSQL report archive schema.

Connection settings come from the database section of the configuration;
the password is read from DIGEST_DATABASE_PASSWORD.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Up()
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations, dropping the archive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Down()
		})
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps <n>",
	Short: "Apply n migrations (negative n rolls back)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
		}
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Steps(n)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), func(*database.Migrator, zerolog.Logger) error {
			return nil
		})
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without migrating, to recover from a failed migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("version must be a non-negative integer, got %q", args[0])
		}
		return withMigrator(cmd.Context(), func(m *database.Migrator, _ zerolog.Logger) error {
			return m.Force(v)
		})
	},
}

// withMigrator connects, runs fn and prints the resulting schema version.
func withMigrator(ctx context.Context, fn func(*database.Migrator, zerolog.Logger) error) error {
	cfg, logger, err := loadConfig(false)
	if err != nil {
		return err
	}
	logger = logger.With().Str("component", "migrate").Logger()

	path := cfg.Database.MigrationPath
	if migratePath != "" {
		path = migratePath
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.New(connectCtx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := fn(migrator, logger); err != nil {
		return err
	}

	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine schema version")
		return nil
	}
	fmt.Printf("schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
