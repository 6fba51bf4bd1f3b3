package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/infrastructure/config"
	"github.com/tuitionhub/backend/internal/infrastructure/logger"
	"github.com/tuitionhub/backend/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

type options struct {
	path     string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the settlement database schema",
		Long: `Apply, roll back and inspect the settlement schema.

Migrations are read from --path when given, otherwise from the set embedded
in the binary. Database settings come from config.toml and TH_ environment
variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.path, "path", "", "Directory of *.sql migrations (default: embedded)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(opts, func(m *migration.Migrator) error {
					return m.Up()
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(opts, func(m *migration.Migrator) error {
					return m.Down()
				})
			},
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations (negative N rolls back)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				return withMigrator(opts, func(m *migration.Migrator) error {
					return m.Steps(n)
				})
			},
		},
		&cobra.Command{
			Use:     "status",
			Aliases: []string{"version"},
			Short:   "Show the applied and latest migration versions",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(opts, func(m *migration.Migrator) error {
					status, err := m.Status(migration.Source{Dir: opts.path})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version: %d\nlatest:  %d\ndirty:   %t\n",
						status.Version, status.Latest, status.Dirty)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the version without running migrations (clears dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < -1 {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(opts, func(m *migration.Migrator) error {
					return m.Force(v)
				})
			},
		},
		newCreateCmd(opts),
	)
	return root
}

func newCreateCmd(opts *options) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.path
			if dir == "" {
				dir = defaultMigrationsDir
			}
			mf, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created migration %d\n", mf.Version)
			fmt.Fprintf(out, "  up:   %s\n", mf.UpPath)
			fmt.Fprintf(out, "  down: %s\n", mf.DownPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Comment written into the up migration")
	return cmd
}

func parseSteps(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("steps must be a non-zero integer, got %q", arg)
	}
	return n, nil
}

// withMigrator opens the configured database, runs fn and releases both
func withMigrator(opts *options, fn func(*migration.Migrator) error) error {
	log, err := logger.New(logger.Config{
		Level:  opts.logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := migration.New(db, migration.Source{Dir: opts.path}, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	// Closing the migrator closes db as well.
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	log.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	return fn(m)
}
