package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"leadgen/internal/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"go.uber.org/zap"
)

// Runner abstracts the migration engine
type Runner interface {
	// Up runs all available migrations
	Up() error
	// Steps runs n migrations (positive for up, negative for down)
	Steps(n int) error
	// Version returns the current migration version
	Version() (uint, bool, error)
	// Force sets the migration version without running migrations
	Force(version int) error
}

// Migrator implements Runner using golang-migrate with an embedded source
type Migrator struct {
	migrate *migrate.Migrate
	log     *logger.Logger
}

// NewMigrator builds a migrator reading SQL files from dir inside fsys
func NewMigrator(db *sql.DB, fsys fs.FS, dir string, log *logger.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return &Migrator{
		migrate: m,
		log:     log.Named("migration"),
	}, nil
}

// Up implements Runner
func (m *Migrator) Up() error {
	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.log.Info("No migrations to run")
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Steps implements Runner
func (m *Migrator) Steps(n int) error {
	m.log.Info("Running migration steps", zap.Int("steps", n))
	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.log.Info("No migrations to run")
			return nil
		}
		return fmt.Errorf("migrate steps: %w", err)
	}
	return nil
}

// Version implements Runner
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

// Force implements Runner
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

// Close closes the migrator
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close database: %w", dbErr)
	}
	return nil
}

// Apply runs fn against a fresh migrator, clearing a dirty version first,
// and logs the resulting version.
func Apply(db *sql.DB, fsys fs.FS, dir string, log *logger.Logger, fn func(Runner) error) error {
	migrator, err := NewMigrator(db, fsys, dir, log)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			log.Warn("Failed to close migrator", zap.Error(closeErr))
		}
	}()

	return run(migrator, log, fn)
}

func run(r Runner, log *logger.Logger, fn func(Runner) error) error {
	version, dirty, err := r.Version()
	if err != nil {
		return fmt.Errorf("get migration version: %w", err)
	}
	if dirty {
		log.Warn("Database is in dirty state, forcing version", zap.Uint("version", version))
		if err := r.Force(int(version)); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	}

	if err := fn(r); err != nil {
		return err
	}

	finalVersion, _, err := r.Version()
	if err != nil {
		log.Warn("Failed to get final version", zap.Error(err))
	} else {
		log.Info("Migrations completed", zap.Uint("version", finalVersion))
	}
	return nil
}

// Up runs every pending migration
func Up(r Runner) error { return r.Up() }

// Down rolls back one migration
func Down(r Runner) error { return r.Steps(-1) }
