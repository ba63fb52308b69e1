package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setbench/setbench/internal/errors"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("./data/setbench", "setbench.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join("./data/setbench", "exports"), cfg.Export.Path)
}

func TestResolve_MemoryDriverKeepsEmptyPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = DriverMemory
	cfg.Resolve()

	assert.Empty(t, cfg.Store.Path)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "compact" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"no read conns", func(c *Config) { c.Store.MaxOpenConns = 0 }},
		{"no lookup samples", func(c *Config) { c.Benchmark.LookupSamples = 0 }},
		{"default concurrency above max", func(c *Config) { c.Stress.DefaultConcurrency = 500 }},
		{"default ops above max", func(c *Config) { c.Stress.DefaultOpsPerUser = 5000 }},
		{"bad backend", func(c *Config) { c.Export.Backend = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Export.Backend = BackendS3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalidConfiguration(err))
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setbench.yaml")
	content := `
mode: bench
data_dir: /tmp/sb
http:
  addr: ":9999"
store:
  driver: memory
benchmark:
  lookup_samples: 250
export:
  backend: s3
  s3:
    bucket: results
    use_path_style: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ModeBench, cfg.Mode)
	assert.Equal(t, "/tmp/sb", cfg.DataDir)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 250, cfg.Benchmark.LookupSamples)
	assert.Equal(t, "results", cfg.Export.S3.Bucket)
	assert.True(t, cfg.Export.S3.UsePathStyle)

	// untouched fields keep their defaults
	assert.Equal(t, 10, cfg.Benchmark.OrderingSample)
	assert.Equal(t, 200, cfg.Stress.MaxConcurrency)
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setbench.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode":"stress","stress":{"default_concurrency":5}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModeStress, cfg.Mode)
	assert.Equal(t, 5, cfg.Stress.DefaultConcurrency)
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	toml := filepath.Join(dir, "setbench.toml")
	require.NoError(t, os.WriteFile(toml, []byte("mode = 'serve'"), 0644))
	_, err = LoadFromFile(toml)
	assert.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SETBENCH_MODE", "stress")
	t.Setenv("SETBENCH_HTTP_ADDR", ":7000")
	t.Setenv("SETBENCH_HTTP_READ_TIMEOUT", "5s")
	t.Setenv("SETBENCH_GRPC_ENABLED", "false")
	t.Setenv("SETBENCH_STORE_MAX_OPEN_CONNS", "3")
	t.Setenv("SETBENCH_BENCHMARK_MAX_SEED", "not-a-number")
	t.Setenv("SETBENCH_S3_USE_PATH_STYLE", "1")
	t.Setenv("SETBENCH_LOG_FORMAT", "json")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, ModeStress, cfg.Mode)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.False(t, cfg.GRPC.Enabled)
	assert.Equal(t, 3, cfg.Store.MaxOpenConns)
	assert.Equal(t, 50000, cfg.Benchmark.MaxSeed)
	assert.True(t, cfg.Export.S3.UsePathStyle)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.Store.Path = filepath.Join(root, "db", "setbench.db")
	cfg.Resolve()

	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.DataDir, filepath.Join(root, "db"), cfg.Export.Path} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}
