package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "schema.yaml", cfg.SchemaFile)
	assert.Equal(t, "content_types.yaml", cfg.ContentTypesFile)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "o", cfg.RootAlias)
	assert.Equal(t, "content_types:reload", cfg.Redis.Channel)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pgx", cfg.DriverName())
}

func TestLoadWithConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	configContent := `
schema_file: graph/schema.yaml
content_types_file: graph/types.json
dialect: sqlite
root_alias: ns
database:
  url: file:content.db
redis:
  addr: localhost:6379
  channel: cms:types
log:
  level: debug
`
	require.NoError(t, os.WriteFile("criteria.yml", []byte(configContent), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "graph/schema.yaml", cfg.SchemaFile)
	assert.Equal(t, "graph/types.json", cfg.ContentTypesFile)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "ns", cfg.RootAlias)
	assert.Equal(t, "file:content.db", cfg.Database.URL)
	assert.Equal(t, "sqlite3", cfg.DriverName())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "cms:types", cfg.Redis.Channel)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: postgresql\ndatabase:\n  driver: postgres\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DriverName())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CRITERIA_DIALECT", "sqlite3")
	t.Setenv("CRITERIA_DATABASE_URL", "file::memory:")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Dialect)
	assert.Equal(t, "file::memory:", cfg.Database.URL)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{SchemaFile: "schema.yaml", Dialect: "postgres", RootAlias: "o", Log: LogConfig{Level: "info"}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown dialect", func(c *Config) { c.Dialect = "oracle" }, "dialect"},
		{"alias with a dot", func(c *Config) { c.RootAlias = "o.x" }, "root_alias"},
		{"empty alias", func(c *Config) { c.RootAlias = "" }, "root_alias"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"no schema", func(c *Config) { c.SchemaFile = "" }, "schema_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "warn"}}

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
