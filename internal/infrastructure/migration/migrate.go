package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/migrations"
)

// MigrationsTable is where golang-migrate records the applied version
const MigrationsTable = "settlement_schema_migrations"

// Migrator applies the settlement schema with golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// Source selects where migrations are read from
type Source struct {
	// Dir is a directory of *.sql files. When empty the embedded set is used.
	Dir string
	// FS overrides the embedded set, mainly for tests
	FS fs.FS
}

// Status describes the schema version of a database
type Status struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	Latest  uint `json:"latest"`
}

// UpToDate reports whether every known migration has been applied cleanly
func (s Status) UpToDate() bool {
	return !s.Dirty && s.Version == s.Latest
}

// New creates a Migrator bound to an open database handle
func New(db *sql.DB, src Source, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	var m *migrate.Migrate
	if src.Dir != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+src.Dir, "postgres", driver)
	} else {
		sourceFS := src.FS
		if sourceFS == nil {
			sourceFS = migrations.FS
		}
		d, ierr := iofs.New(sourceFS, ".")
		if ierr != nil {
			return nil, fmt.Errorf("failed to open embedded migrations: %w", ierr)
		}
		m, err = migrate.NewWithInstance("iofs", d, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &zapMigrateLogger{logger: logger.Named("migrate")}

	return &Migrator{
		migrate: m,
		logger:  logger,
	}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	m.logger.Info("Running migrations up")

	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migrations completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	m.logger.Info("Running migrations down")

	err := m.migrate.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	m.logger.Info("All migrations rolled back")
	return nil
}

// Steps applies n migrations (positive = up, negative = down)
func (m *Migrator) Steps(n int) error {
	m.logger.Info("Running migration steps", zap.Int("steps", n))

	err := m.migrate.Steps(n)
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration steps failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migration steps completed",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version returns the current migration version; zero means nothing applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Status returns the applied version alongside the newest known migration
func (m *Migrator) Status(src Source) (*Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	latest, err := LatestVersion(src)
	if err != nil {
		return nil, err
	}
	return &Status{Version: version, Dirty: dirty, Latest: latest}, nil
}

// Force sets the migration version without running migrations. It is the
// escape hatch for a dirty database after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))

	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}

	m.logger.Info("Migration version forced", zap.Int("version", version))
	return nil
}

// Close closes the migrator and releases resources
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

type zapMigrateLogger struct {
	logger *zap.Logger
}

func (l *zapMigrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *zapMigrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
