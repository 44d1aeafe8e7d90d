package postgres

import (
	stderrors "errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// MigrationStatus is the schema version recorded in schema_migrations.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// Migrator applies the SQL files of a migrations directory.
type Migrator struct {
	dbURL     string
	sourceURL string
	logger    logging.Logger

	// newMigrate is replaced in tests.
	newMigrate func(sourceURL, dbURL string) (migrator, error)
}

// migrator is the subset of *migrate.Migrate used here.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(v int) error
	Close() (error, error)
}

// NewMigrator creates a Migrator for the database at dbURL.  path is a
// directory; a "file://" prefix is added when missing.
func NewMigrator(dbURL, path string, logger logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	src := path
	if !strings.Contains(src, "://") {
		src = "file://" + src
	}
	return &Migrator{
		dbURL:     dbURL,
		sourceURL: src,
		logger:    logger.Named("migrator"),
		newMigrate: func(sourceURL, dbURL string) (migrator, error) {
			return migrate.New(sourceURL, dbURL)
		},
	}
}

func (m *Migrator) open() (migrator, error) {
	mg, err := m.newMigrate(m.sourceURL, m.dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance").WithDetail(m.sourceURL)
	}
	return mg, nil
}

// Up applies every pending migration.  An up-to-date schema is not an
// error.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}
	st, err := status(mg)
	if err != nil {
		return err
	}
	m.logger.Info("migrations applied", logging.Int("version", int(st.Version)), logging.Bool("dirty", st.Dirty))
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.CodeInvalidParam, "steps must be greater than 0, got %d", steps)
	}
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.CodeInvalidParam, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	m.logger.Info("migrations rolled back", logging.Int("steps", steps))
	return nil
}

// Status reports the applied version.  A fresh database reports version 0.
func (m *Migrator) Status() (MigrationStatus, error) {
	mg, err := m.open()
	if err != nil {
		return MigrationStatus{}, err
	}
	defer mg.Close()
	return status(mg)
}

// Force sets the recorded version without running migrations, clearing a
// dirty flag left by a failed migration.
func (m *Migrator) Force(version int) error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version")
	}
	m.logger.Warn("migration version forced", logging.Int("version", version))
	return nil
}

func status(mg migrator) (MigrationStatus, error) {
	v, dirty, err := mg.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return MigrationStatus{}, nil
		}
		return MigrationStatus{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read migration version")
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}
