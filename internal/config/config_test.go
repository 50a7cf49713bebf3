package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/schemamatch/configs"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: defaults are applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "metadata.attributs", cfg.Database.MetadataTable)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.False(t, cfg.Catalog.Watch)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 0.6, cfg.Matcher.Threshold)
	assert.Equal(t, "ratio", cfg.Matcher.Similarity)
	assert.Equal(t, runtime.NumCPU(), cfg.Matcher.Workers)
	assert.Equal(t, CandidatesExhaustive, cfg.Matcher.Candidates)
	assert.Equal(t, "fr", cfg.Keywords.Language)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Matcher, cfg.Matcher)
	assert.Equal(t, "", cfg.Source())
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	// Given: a user config and a project config that disagree
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "schemamatch", "config.yaml"), `
matcher:
  threshold: 0.7
  similarity: levenshtein
keywords:
  language: en
`)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectConfigName), `
matcher:
  threshold: 0.8
catalog:
  file: attributes.yaml
`)

	// When: loading
	cfg, err := Load(project)

	// Then: project wins, user fills the rest
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Matcher.Threshold)
	assert.Equal(t, "levenshtein", cfg.Matcher.Similarity)
	assert.Equal(t, "en", cfg.Keywords.Language)
	assert.Equal(t, "attributes.yaml", cfg.Catalog.File)
	assert.Equal(t, "file", cfg.Source())
}

func TestLoad_ExplicitZeroThresholdHonored(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectConfigName), "matcher:\n  threshold: 0\n")

	cfg, err := Load(project)

	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Matcher.Threshold)
	// untouched keys keep defaults
	assert.Equal(t, "ratio", cfg.Matcher.Similarity)
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".schemamatch.yml"), "server:\n  log_level: debug\n")

	cfg, err := Load(project)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectConfigName), "matcher:\n  threshold: 0.8\n")

	t.Setenv("SCHEMAMATCH_THRESHOLD", "0.5")
	t.Setenv("SCHEMAMATCH_DSN", "postgres://u:p@localhost/db")
	t.Setenv("SCHEMAMATCH_WORKERS", "3")
	t.Setenv("SCHEMAMATCH_STEM", "true")
	t.Setenv("SCHEMAMATCH_WATCH", "1")
	t.Setenv("SCHEMAMATCH_LOG_LEVEL", "warn")

	cfg, err := Load(project)

	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Matcher.Threshold)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Matcher.Workers)
	assert.True(t, cfg.Keywords.Stem)
	assert.True(t, cfg.Catalog.Watch)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, "database", cfg.Source())
}

func TestLoad_InvalidEnvValuesIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("SCHEMAMATCH_THRESHOLD", "1.5")
	t.Setenv("SCHEMAMATCH_WORKERS", "many")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Matcher.Threshold)
	assert.Equal(t, runtime.NumCPU(), cfg.Matcher.Workers)
}

func TestLoad_MalformedYAML_ReturnsConfigInvalid(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectConfigName), "matcher: [unclosed\n")

	_, err := Load(project)

	require.Error(t, err)
	assert.Equal(t, smerrors.ErrCodeConfigInvalid, smerrors.GetCode(err))
}

func TestLoadFile_Missing_ReturnsNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Equal(t, smerrors.ErrCodeConfigNotFound, smerrors.GetCode(err))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"threshold above one", func(c *Config) { c.Matcher.Threshold = 1.2 }, "matcher.threshold"},
		{"threshold negative", func(c *Config) { c.Matcher.Threshold = -0.1 }, "matcher.threshold"},
		{"unknown similarity", func(c *Config) { c.Matcher.Similarity = "cosine" }, "matcher.similarity"},
		{"negative workers", func(c *Config) { c.Matcher.Workers = -1 }, "matcher.workers"},
		{"unknown candidates", func(c *Config) { c.Matcher.Candidates = "bm25" }, "matcher.candidates"},
		{"unknown language", func(c *Config) { c.Keywords.Language = "de" }, "keywords.language"},
		{"bad timeout", func(c *Config) { c.Database.ConnectTimeout = "soon" }, "database.connect_timeout"},
		{"negative debounce", func(c *Config) { c.Catalog.Debounce = "-1s" }, "catalog.debounce"},
		{"bad transport", func(c *Config) { c.Server.Transport = "grpc" }, "server.transport"},
		{"http without addr", func(c *Config) { c.Server.Transport = "http"; c.Server.Addr = " " }, "server.addr"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "trace" }, "server.log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			e, ok := smerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, smerrors.ErrCodeConfigInvalid, e.Code)
			assert.Equal(t, tt.field, e.Details["field"])
		})
	}
}

func TestValidate_BoundaryThresholdsAccepted(t *testing.T) {
	for _, th := range []float64{0, 1} {
		cfg := NewConfig()
		cfg.Matcher.Threshold = th
		assert.NoError(t, cfg.Validate())
	}
}

func TestWriteYAML_RoundTripsThroughLoadFile(t *testing.T) {
	// Given: a customised config written to disk
	cfg := NewConfig()
	cfg.Matcher.Threshold = 0.75
	cfg.Catalog.File = "catalog.yaml"
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	// When: writing and reading it back
	require.NoError(t, cfg.WriteYAML(path))
	loaded, err := LoadFile(path)

	// Then: values survive
	require.NoError(t, err)
	assert.Equal(t, 0.75, loaded.Matcher.Threshold)
	assert.Equal(t, "catalog.yaml", loaded.Catalog.File)
}

func TestExampleConfig_ParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	writeFile(t, path, configs.ExampleConfig)

	cfg, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Matcher.Threshold)
	assert.Equal(t, 0, cfg.Matcher.Workers)
	assert.NotEmpty(t, cfg.Telemetry.Path)
}
