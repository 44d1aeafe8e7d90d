package postgres

import (
	stderrors "errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/leadscope/internal/testutil"
	"github.com/turtacn/leadscope/pkg/errors"
)

type fakeMigrate struct {
	upErr      error
	stepsErr   error
	steps      []int
	version    uint
	dirty      bool
	versionErr error
	forced     []int
	closed     int
}

func (f *fakeMigrate) Up() error { return f.upErr }
func (f *fakeMigrate) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.stepsErr
}
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(v int) error {
	f.forced = append(f.forced, v)
	return nil
}
func (f *fakeMigrate) Close() (error, error) {
	f.closed++
	return nil, nil
}

func newTestMigrator(t *testing.T, f *fakeMigrate) (*Migrator, *testutil.MockLogger) {
	t.Helper()
	logger := testutil.NewMockLogger()
	m := NewMigrator("postgres://u:p@localhost:5432/leadscope?sslmode=disable", "migrations", logger)
	m.newMigrate = func(sourceURL, dbURL string) (migrator, error) {
		assert.Equal(t, "file://migrations", sourceURL)
		return f, nil
	}
	return m, logger
}

func TestMigrator_UpNoChangeIsNotAnError(t *testing.T) {
	f := &fakeMigrate{upErr: migrate.ErrNoChange, version: 2}
	m, logger := newTestMigrator(t, f)

	require.NoError(t, m.Up())
	assert.Equal(t, 1, f.closed)
	assert.True(t, logger.HasMessage("info", "migrations applied"))
}

func TestMigrator_UpFailure(t *testing.T) {
	m, _ := newTestMigrator(t, &fakeMigrate{upErr: stderrors.New("syntax error")})
	err := m.Up()
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestMigrator_Down(t *testing.T) {
	f := &fakeMigrate{}
	m, _ := newTestMigrator(t, f)

	require.NoError(t, m.Down(1))
	assert.Equal(t, []int{-1}, f.steps)

	err := m.Down(0)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	f.stepsErr = migrate.ErrNoChange
	err = m.Down(1)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestMigrator_Status(t *testing.T) {
	m, _ := newTestMigrator(t, &fakeMigrate{version: 2, dirty: true})
	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{Version: 2, Dirty: true}, st)

	m, _ = newTestMigrator(t, &fakeMigrate{versionErr: migrate.ErrNilVersion})
	st, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{}, st)
}

func TestMigrator_Force(t *testing.T) {
	f := &fakeMigrate{}
	m, logger := newTestMigrator(t, f)
	require.NoError(t, m.Force(1))
	assert.Equal(t, []int{1}, f.forced)
	assert.True(t, logger.HasMessage("warn", "migration version forced"))
}

func TestMigrator_OpenFailure(t *testing.T) {
	m := NewMigrator("postgres://x", "file:///nowhere", nil)
	m.newMigrate = func(string, string) (migrator, error) { return nil, stderrors.New("no such dir") }
	_, err := m.Status()
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}
