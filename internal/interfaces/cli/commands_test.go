package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/leadscope/internal/application/pipeline"
	"github.com/turtacn/leadscope/internal/config"
	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// run
// ─────────────────────────────────────────────────────────────────────────────

func TestRunCmd_DryRunWritesNothing(t *testing.T) {
	cfgPath, outDir := fixtureDir(t, "")

	out, err := executeCommand(t, "--config", cfgPath, "-o", "json", "run", "--dry-run")
	require.NoError(t, err)

	var s RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "2025-06-01", s.AsOf)
	assert.Equal(t, 3, s.Assets)
	assert.Equal(t, 2, s.Accounts)
	assert.GreaterOrEqual(t, s.Leads, 2)
	assert.Positive(t, s.Recommendations)
	assert.Equal(t, s.Leads, len(s.TopLeads))

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr), "dry run must not create %s", outDir)
}

func TestRunCmd_ExportsAreReproducible(t *testing.T) {
	cfgPath, outDir := fixtureDir(t, "")

	_, err := executeCommand(t, "--config", cfgPath, "run")
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(outDir, pipeline.LeadsFile))
	require.NoError(t, err)
	firstRecs, err := os.ReadFile(filepath.Join(outDir, pipeline.RecommendationsFile))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(first), strings.Join(pipeline.LeadColumns, ",")+"\n"))
	assert.True(t, strings.HasPrefix(string(firstRecs), strings.Join(pipeline.RecommendationColumns, ",")+"\n"))

	_, err = executeCommand(t, "--config", cfgPath, "run", "--workers", "4")
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(outDir, pipeline.LeadsFile))
	require.NoError(t, err)
	secondRecs, err := os.ReadFile(filepath.Join(outDir, pipeline.RecommendationsFile))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, string(firstRecs), string(secondRecs))
}

func TestRunCmd_OutputDirFlagOverridesConfig(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	dir := filepath.Join(t.TempDir(), "elsewhere")

	out, err := executeCommand(t, "--config", cfgPath, "run", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "as of 2025-06-01")
	assert.FileExists(t, filepath.Join(dir, pipeline.LeadsFile))
}

func TestRunCmd_TableOutput(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")

	out, err := executeCommand(t, "--config", cfgPath, "-o", "table", "run", "--dry-run")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, out, "SGH001")
}

func TestRunCmd_MissingAssetsFails(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	t.Setenv("LEADSCOPE_SOURCES_ASSETS", filepath.Join(t.TempDir(), "missing.csv"))

	_, err := executeCommand(t, "--config", cfgPath, "run", "--dry-run")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceRead))
}

// ─────────────────────────────────────────────────────────────────────────────
// recommend
// ─────────────────────────────────────────────────────────────────────────────

func TestRecommendCmd_Serial(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")

	out, err := executeCommand(t, "--config", cfgPath, "-o", "json", "recommend", "--serial", "SGH001")
	require.NoError(t, err)

	var list RecommendationList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, "SGH001", list.SubjectID)
	require.NotEmpty(t, list.Recommendations)
	for i, r := range list.Recommendations {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, "SGH001", r.SubjectID)
	}
}

func TestRecommendCmd_Project(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")

	out, err := executeCommand(t, "--config", cfgPath, "recommend", "--project", "P-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "P-1:"))
	assert.Contains(t, out, "1. ")
}

func TestRecommendCmd_Errors(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")

	_, err := executeCommand(t, "--config", cfgPath, "recommend")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = executeCommand(t, "--config", cfgPath, "recommend", "--serial", "SGH001", "--project", "P-1")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = executeCommand(t, "--config", cfgPath, "recommend", "--serial", "NOPE")
	assert.True(t, errors.IsNotFound(err))

	_, err = executeCommand(t, "--config", cfgPath, "recommend", "--project", "P-404")
	assert.True(t, errors.IsNotFound(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// normalize
// ─────────────────────────────────────────────────────────────────────────────

func TestNormalizeCmd_VariantsCollapse(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")

	out, err := executeCommand(t, "--config", cfgPath, "normalize", "Acme Corp", "ACME Corporation", "Globex Inc")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp\tacme\nACME Corporation\tacme\nGlobex Inc\tglobex\n", out)
}

func TestNormalizeCmd_JSON(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")

	out, err := executeCommand(t, "--config", cfgPath, "-o", "json", "normalize", "Acme Corp", "ACME Corporation")
	require.NoError(t, err)

	var names NormalizedNames
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	require.Len(t, names, 2)
	assert.Equal(t, account.MethodNew, names[0].Method)
	assert.Equal(t, account.MethodExact, names[1].Method)
	assert.Equal(t, 100, names[1].Score)
}

func TestNormalizeCmd_RequiresArgs(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	_, err := executeCommand(t, "--config", cfgPath, "normalize")
	assert.Error(t, err)
}

func TestNormalizeCmd_RestoresPersistedRegistry(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := mr.RPush("leadscope:account:registrations", `{"seq":1,"key":"acme","raw":"Acme Corp","method":"new"}`)
	require.NoError(t, err)

	cfgPath, _ := fixtureDir(t, "redis:\n  enabled: true\n  addr: "+mr.Addr()+"\n")

	out, err := executeCommand(t, "--config", cfgPath, "-o", "json", "normalize", "Acme Corp")
	require.NoError(t, err)
	var names NormalizedNames
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	require.Len(t, names, 1)
	assert.Equal(t, account.MethodExact, names[0].Method)

	out, err = executeCommand(t, "--config", cfgPath, "-o", "json", "normalize", "--no-restore", "Acme Corp")
	require.NoError(t, err)
	names = nil
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, account.MethodNew, names[0].Method)

	// Nothing is written back.
	list, err := mr.List("leadscope:account:registrations")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ─────────────────────────────────────────────────────────────────────────────
// migrate
// ─────────────────────────────────────────────────────────────────────────────

type mockMigrator struct{ mock.Mock }

func (m *mockMigrator) Up() error            { return m.Called().Error(0) }
func (m *mockMigrator) Down(steps int) error { return m.Called(steps).Error(0) }
func (m *mockMigrator) Force(v int) error    { return m.Called(v).Error(0) }

func (m *mockMigrator) Status() (postgres.MigrationStatus, error) {
	args := m.Called()
	return args.Get(0).(postgres.MigrationStatus), args.Error(1)
}

func stubMigrator(t *testing.T, m schemaMigrator) {
	t.Helper()
	orig := newMigrator
	newMigrator = func(*config.Config, logging.Logger) (schemaMigrator, error) { return m, nil }
	t.Cleanup(func() { newMigrator = orig })
}

func TestMigrateCmd_Subcommands(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	m := &mockMigrator{}
	m.On("Up").Return(nil)
	m.On("Down", 1).Return(nil)
	m.On("Down", 2).Return(nil)
	m.On("Status").Return(postgres.MigrationStatus{Version: 2}, nil)
	m.On("Force", 1).Return(nil)
	stubMigrator(t, m)

	cases := []struct {
		args []string
		want string
	}{
		{[]string{"migrate", "up"}, "OK: migrations applied\n"},
		{[]string{"migrate", "down"}, "OK: rolled back 1 migration(s)\n"},
		{[]string{"migrate", "down", "2"}, "OK: rolled back 2 migration(s)\n"},
		{[]string{"migrate", "status"}, "version 2\n"},
		{[]string{"migrate", "force", "1"}, "OK: schema version forced to 1\n"},
	}
	for _, tc := range cases {
		out, err := executeCommand(t, append([]string{"--config", cfgPath}, tc.args...)...)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, out, tc.args)
	}
	m.AssertExpectations(t)
}

func TestMigrateCmd_DirtyStatus(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	m := &mockMigrator{}
	m.On("Status").Return(postgres.MigrationStatus{Version: 3, Dirty: true}, nil)
	stubMigrator(t, m)

	out, err := executeCommand(t, "--config", cfgPath, "migrate", "status")
	require.NoError(t, err)
	assert.Equal(t, "version 3 (dirty)\n", out)
}

func TestMigrateCmd_BadArguments(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	m := &mockMigrator{}
	stubMigrator(t, m)

	_, err := executeCommand(t, "--config", cfgPath, "migrate", "down", "0")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = executeCommand(t, "--config", cfgPath, "migrate", "force", "latest")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	m.AssertNotCalled(t, "Down", mock.Anything)
	m.AssertNotCalled(t, "Force", mock.Anything)
}

func TestMigrateCmd_DatabaseDisabled(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	_, err := executeCommand(t, "--config", cfgPath, "migrate", "up")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

// ─────────────────────────────────────────────────────────────────────────────
// config
// ─────────────────────────────────────────────────────────────────────────────

func TestConfigCmd_Validate(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "")
	out, err := executeCommand(t, "--config", cfgPath, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "OK: configuration is valid\n", out)
}

func TestConfigCmd_ValidateReportsInvariant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	body := "engine:\n" +
		"  scoring_weights:\n" +
		"    urgency: 0.5\n" +
		"    account_size: 0.5\n" +
		"    engagement: 0.5\n" +
		"    strategic_fit: 0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := executeCommand(t, "--config", path, "config", "validate")
	require.Error(t, err)
	assert.True(t, errors.IsConfigInvariant(err))

	// Commands that need a valid configuration refuse to start.
	_, err = executeCommand(t, "--config", path, "normalize", "Acme")
	assert.True(t, errors.IsConfigInvariant(err))
}

func TestConfigCmd_ShowRedactsSecrets(t *testing.T) {
	cfgPath, _ := fixtureDir(t, "database:\n  password: s3cret\nminio:\n  secret_access_key: minio-secret\n")

	out, err := executeCommand(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "minio-secret")
	assert.Contains(t, out, redacted)
	assert.True(t, json.Valid([]byte(out)))
}

func TestRedact_LeavesInputUntouched(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Redis.Password = "pw"

	out := redact(cfg)
	assert.Equal(t, redacted, out.Redis.Password)
	assert.Equal(t, "pw", cfg.Redis.Password)
	assert.Empty(t, out.Database.Password)
}
