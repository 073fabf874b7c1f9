package goontology

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, 4096, cfg.Generator.NumCtx)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.EnrichBatchSize)
	assert.False(t, cfg.ConnectComponents)
	assert.False(t, cfg.EnrichDetails)
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goontology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
generator:
  provider: process
  command: ./generate.sh
  args: ["--quiet"]
  num_ctx: 8192
timeout: 90s
connect_components: true
cache:
  ttl: 15m
  storage_dir: local
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "process", cfg.Generator.Provider)
	assert.Equal(t, "./generate.sh", cfg.Generator.Command)
	assert.Equal(t, []string{"--quiet"}, cfg.Generator.Args)
	assert.Equal(t, 8192, cfg.Generator.NumCtx)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.True(t, cfg.ConnectComponents)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "cache.db", cfg.Cache.ResolvePath())
	// Unset fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.HealthTimeout)
	assert.True(t, cfg.Generator.JSONMode)
}

func TestLoadConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goontology.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"generator":{"provider":"groq","model":"llama-3.3-70b-versatile"},"timeout":"30s"}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.Generator.Provider)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [not a duration"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GOONTOLOGY_PROVIDER", "process")
	t.Setenv("GOONTOLOGY_COMMAND", "python3")
	t.Setenv("GOONTOLOGY_ARGS", "gen.py --json")
	t.Setenv("GOONTOLOGY_NUM_CTX", "2048")
	t.Setenv("GOONTOLOGY_TIMEOUT", "45s")
	t.Setenv("GOONTOLOGY_DETAILS", "true")
	t.Setenv("GOONTOLOGY_CACHE_TTL", "1h")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "process", cfg.Generator.Provider)
	assert.Equal(t, "python3", cfg.Generator.Command)
	assert.Equal(t, []string{"gen.py", "--json"}, cfg.Generator.Args)
	assert.Equal(t, 2048, cfg.Generator.NumCtx)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.True(t, cfg.EnrichDetails)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestApplyEnvMalformed(t *testing.T) {
	t.Setenv("GOONTOLOGY_NUM_CTX", "lots")
	t.Setenv("GOONTOLOGY_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "GOONTOLOGY_NUM_CTX")
	assert.Equal(t, 4096, cfg.Generator.NumCtx)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no provider", func(c *Config) { c.Generator.Provider = "" }},
		{"process without command", func(c *Config) { c.Generator.Provider = "process" }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"negative num_ctx", func(c *Config) { c.Generator.NumCtx = -1 }},
		{"negative batch", func(c *Config) { c.EnrichBatchSize = -2 }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestCacheResolvePath(t *testing.T) {
	assert.Equal(t, "/tmp/x.db", CacheConfig{Path: "/tmp/x.db"}.ResolvePath())
	assert.Equal(t, "cache.db", CacheConfig{StorageDir: "local"}.ResolvePath())

	home, err := os.UserHomeDir()
	if err == nil {
		assert.Equal(t, filepath.Join(home, ".goontology", "cache.db"), CacheConfig{}.ResolvePath())
	}
}

func TestTemperatureUnsetVersusZero(t *testing.T) {
	assert.Nil(t, DefaultConfig().Generator.Temperature, "unset keeps the server default")

	path := filepath.Join(t.TempDir(), "goontology.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  temperature: 0\n"), 0644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Generator.Temperature)
	assert.Zero(t, *cfg.Generator.Temperature)

	t.Setenv("GOONTOLOGY_TEMPERATURE", "0.7")
	cfg = DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	require.NotNil(t, cfg.Generator.Temperature)
	assert.InDelta(t, 0.7, *cfg.Generator.Temperature, 1e-9)
}
