package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	ttl, err := cfg.Server.TTL()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, ttl)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := inTempDir(t)
	content := `
[input]
dir = "./data/../in"
recursive = true

[output]
format = "CSV"

[export]
add_source_file = true
sample_rows = 50

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(content), 0o644))
	t.Setenv("TABLE_MERGER_OUTPUT_DIR", "out/")
	t.Setenv("TABLE_MERGER_SAMPLE_ROWS", "not a number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "in", cfg.Input.Dir)
	assert.True(t, cfg.Input.Recursive)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.True(t, cfg.Export.AddSourceFile)
	assert.Equal(t, 50, cfg.Export.SampleRows)
	assert.Equal(t, "Merged Data", cfg.Export.SheetName)

	lvl, err := cfg.Log.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TABLE_MERGER_SERVER_ADDR=:9999\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TABLE_MERGER_SERVER_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	inTempDir(t)
	_, err := Load("nope.toml")
	assert.Error(t, err)
}

func TestLoadBrokenToml(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[output\nformat="), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"format", func(c *Config) { c.Output.Format = "pdf" }},
		{"sample rows", func(c *Config) { c.Export.SampleRows = 0 }},
		{"readers", func(c *Config) { c.Input.Readers = -1 }},
		{"ttl", func(c *Config) { c.Server.DownloadTTL = "soon" }},
		{"negative ttl", func(c *Config) { c.Server.DownloadTTL = "-1m" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
