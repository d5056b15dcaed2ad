package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so DefaultPath and .env
// lookups do not see the repository.
func inTempDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "MIGRASAFE_DRIVER", "MIGRASAFE_DIR",
		"MIGRASAFE_HISTORY_TABLE", "MIGRASAFE_LOG_LEVEL", "MIGRASAFE_HOT_TABLES",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "schema_migrations", cfg.HistoryTable)
	assert.Equal(t, int64(1_000_000), cfg.HotTableMinRows)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Error(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)

	writeFile(t, filepath.Join(dir, DefaultPath), `
database_url: postgres://localhost/app
driver: mysql
migrations_dir: db/migrations
hot_tables:
  - users
  - ledger_entries
hot_table_min_rows: 5000
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/app", cfg.DatabaseURL)
	assert.Equal(t, "mysql", cfg.Driver)
	assert.Equal(t, "db/migrations", cfg.MigrationsDir)
	assert.Equal(t, []string{"users", "ledger_entries"}, cfg.HotTables)
	assert.Equal(t, int64(5000), cfg.HotTableMinRows)
	assert.Equal(t, "schema_migrations", cfg.HistoryTable)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)

	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "driver: mysql\nlog_level: error\n")

	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("MIGRASAFE_DRIVER", "sqlite")
	t.Setenv("MIGRASAFE_HOT_TABLES", " users, ,orders ")
	t.Setenv("MIGRASAFE_HISTORY_TABLE", "applied")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file:test.db", cfg.DatabaseURL)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "applied", cfg.HistoryTable)
	assert.Equal(t, []string{"users", "orders"}, cfg.HotTables)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)

	writeFile(t, filepath.Join(dir, DefaultPath), "driver: [unterminated\n")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_DotEnvFallback(t *testing.T) {
	dir := inTempDir(t)
	clearEnv(t)

	writeFile(t, filepath.Join(dir, ".env"), "# local settings\nDATABASE_URL=\"postgres://dotenv/app\"\nOTHER=1\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/app", cfg.DatabaseURL)
}
