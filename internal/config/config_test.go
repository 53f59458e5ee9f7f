package config

// Test Plan for Config loading and validation:
// - Defaults load when no file, .env or environment is present
// - .typefind.yml overrides defaults
// - An explicit --config file must exist
// - TYPEFIND_* environment variables override the file; .env fills unset variables
// - Changed flags override everything; unchanged flags do not
// - Validate reports every problem at once and each wraps its sentinel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".typefind.yml", `
storage:
  path: graph.db
  single_transaction: false
filter:
  accept_prefixes: [/src/project]
  ignore: ["**/third_party/**"]
index:
  max_template_depth: 8
log:
  format: json
`)

	cfg, err := NewLoader(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "graph.db", cfg.Storage.Path)
	assert.False(t, cfg.Storage.SingleTransaction)
	assert.True(t, cfg.Storage.Lock, "unset keys keep their default")
	assert.Equal(t, []string{"/src/project"}, cfg.Filter.AcceptPrefixes)
	assert.Equal(t, []string{"**/third_party/**"}, cfg.Filter.Ignore)
	assert.Equal(t, 8, cfg.Index.MaxTemplateDepth)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewLoader(dir, WithConfigFile(filepath.Join(dir, "nope.yml"))).Load()
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".typefind.yml", "storage:\n  path: file.db\nindex:\n  workers: 2\n")
	writeFile(t, dir, ".env", "TYPEFIND_LOG_LEVEL=debug\nTYPEFIND_INDEX_WORKERS=9\n")
	t.Setenv("TYPEFIND_STORAGE_PATH", "env.db")
	t.Setenv("TYPEFIND_INDEX_WORKERS", "3")
	t.Cleanup(func() { os.Unsetenv("TYPEFIND_LOG_LEVEL") })

	cfg, err := NewLoader(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Index.Workers, ".env does not override the environment")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Flags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".typefind.yml", "storage:\n  path: file.db\nmetrics:\n  file: from-file.prom\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("metrics-file", "", "")
	require.NoError(t, flags.Parse([]string{"--db", "flag.db"}))

	cfg, err := NewLoader(dir, WithFlags(flags, map[string]string{
		"storage.path": "db",
		"metrics.file": "metrics-file",
	})).Load()
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.Storage.Path)
	assert.Equal(t, "from-file.prom", cfg.Metrics.File)
}

func TestLoad_UnknownFlag(t *testing.T) {
	t.Parallel()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	_, err := NewLoader(t.TempDir(), WithFlags(flags, map[string]string{"storage.path": "db"})).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(Default()))

	cfg := Default()
	cfg.Storage.Path = " "
	cfg.Filter.AcceptGlobs = []string{"src/[a-"}
	cfg.Filter.Script = filepath.Join(t.TempDir(), "missing.py")
	cfg.Index.MaxTemplateDepth = -1
	cfg.Index.ResolverCacheSize = -5
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStorage)
	assert.ErrorIs(t, err, ErrInvalidFilter)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.ErrorIs(t, err, ErrInvalidLog)
	assert.Contains(t, err.Error(), "max_template_depth")
	assert.Contains(t, err.Error(), "resolver_cache_size")
	assert.Contains(t, err.Error(), "xml")
}

func TestValidate_ScriptDirectory(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Filter.Script = t.TempDir()
	assert.ErrorIs(t, Validate(cfg), ErrInvalidFilter)
}
