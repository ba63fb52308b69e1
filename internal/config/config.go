// Package config provides the configuration for every setbench mode.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/setbench/setbench/internal/errors"
)

// Mode represents how the binary runs.
type Mode string

const (
	ModeServe  Mode = "serve"
	ModeBench  Mode = "bench"
	ModeStress Mode = "stress"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Export backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config holds the configuration for setbench.
type Config struct {
	// Mode specifies what to run: serve, bench, stress
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	GRPC      GRPCConfig      `json:"grpc" yaml:"grpc"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Benchmark BenchmarkConfig `json:"benchmark" yaml:"benchmark"`
	Stress    StressConfig    `json:"stress" yaml:"stress"`
	Export    ExportConfig    `json:"export" yaml:"export"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address of the REST API
	Addr string `json:"addr" yaml:"addr"`

	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether the health service is started
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StoreConfig selects and tunes the authoritative store.
type StoreConfig struct {
	// Driver is sqlite or memory
	Driver string `json:"driver" yaml:"driver"`

	// Path is the SQLite database file; defaults to <data_dir>/setbench.db
	Path string `json:"path" yaml:"path"`

	// MaxOpenConns caps the read connection pool
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`
}

// BenchmarkConfig tunes the comparative benchmark.
type BenchmarkConfig struct {
	LookupSamples  int `json:"lookup_samples" yaml:"lookup_samples"`
	OrderingSample int `json:"ordering_sample" yaml:"ordering_sample"`

	// MaxSeed bounds POST /api/seed and the -seed flag
	MaxSeed int `json:"max_seed" yaml:"max_seed"`
}

// StressConfig holds stress defaults and limits.
type StressConfig struct {
	DefaultConcurrency int `json:"default_concurrency" yaml:"default_concurrency"`
	DefaultOpsPerUser  int `json:"default_ops_per_user" yaml:"default_ops_per_user"`
	MaxConcurrency     int `json:"max_concurrency" yaml:"max_concurrency"`
	MaxOpsPerUser      int `json:"max_ops_per_user" yaml:"max_ops_per_user"`
	MaxSeed            int `json:"max_seed" yaml:"max_seed"`
}

// ExportConfig controls where archived artifacts go.
type ExportConfig struct {
	// Backend is local or s3
	Backend string `json:"backend" yaml:"backend"`

	// Path is the local export root; defaults to <data_dir>/exports
	Path string `json:"path" yaml:"path"`

	// Compress stores artifacts snappy-compressed
	Compress bool `json:"compress" yaml:"compress"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`

	// UsePathStyle is required by most S3-compatible servers
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeServe,
		DataDir: "./data/setbench",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Store: StoreConfig{
			Driver:       DriverSQLite,
			MaxOpenConns: 8,
		},
		Benchmark: BenchmarkConfig{
			LookupSamples:  1000,
			OrderingSample: 10,
			MaxSeed:        50000,
		},
		Stress: StressConfig{
			DefaultConcurrency: 20,
			DefaultOpsPerUser:  50,
			MaxConcurrency:     200,
			MaxOpsPerUser:      1000,
			MaxSeed:            10000,
		},
		Export: ExportConfig{
			Backend:  BackendLocal,
			Compress: true,
			S3: S3Config{
				Prefix: "setbench",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Resolve fills paths derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/setbench"
	}
	if c.Store.Path == "" && c.Store.Driver == DriverSQLite {
		c.Store.Path = filepath.Join(c.DataDir, "setbench.db")
	}
	if c.Export.Path == "" {
		c.Export.Path = filepath.Join(c.DataDir, "exports")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeServe, ModeBench, ModeStress:
	default:
		return invalid("invalid mode: %s (must be serve, bench, or stress)", c.Mode)
	}

	if c.DataDir == "" {
		return invalid("data_dir is required")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return invalid("store.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return invalid("invalid store driver: %s (must be sqlite or memory)", c.Store.Driver)
	}
	if c.Store.MaxOpenConns < 1 {
		return invalid("store.max_open_conns must be at least 1, got %d", c.Store.MaxOpenConns)
	}

	if c.Benchmark.LookupSamples < 1 {
		return invalid("benchmark.lookup_samples must be at least 1, got %d", c.Benchmark.LookupSamples)
	}
	if c.Benchmark.OrderingSample < 0 {
		return invalid("benchmark.ordering_sample must not be negative, got %d", c.Benchmark.OrderingSample)
	}
	if c.Benchmark.MaxSeed < 1 {
		return invalid("benchmark.max_seed must be at least 1, got %d", c.Benchmark.MaxSeed)
	}

	s := c.Stress
	if s.MaxConcurrency < 1 || s.MaxOpsPerUser < 1 || s.MaxSeed < 0 {
		return invalid("stress limits must be positive")
	}
	if s.DefaultConcurrency < 1 || s.DefaultConcurrency > s.MaxConcurrency {
		return invalid("stress.default_concurrency must be between 1 and %d, got %d", s.MaxConcurrency, s.DefaultConcurrency)
	}
	if s.DefaultOpsPerUser < 1 || s.DefaultOpsPerUser > s.MaxOpsPerUser {
		return invalid("stress.default_ops_per_user must be between 1 and %d, got %d", s.MaxOpsPerUser, s.DefaultOpsPerUser)
	}

	switch c.Export.Backend {
	case BackendLocal:
	case BackendS3:
		if c.Export.S3.Bucket == "" {
			return invalid("export.s3.bucket is required when backend is s3")
		}
	default:
		return invalid("invalid export backend: %s (must be local or s3)", c.Export.Backend)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return errors.NewConfigurationError(fmt.Sprintf(format, args...))
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables with the SETBENCH_ prefix.
// Unparseable numeric values are ignored.
func LoadFromEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv("SETBENCH_" + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv("SETBENCH_" + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv("SETBENCH_" + key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv("SETBENCH_" + key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	if v := os.Getenv("SETBENCH_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	str("DATA_DIR", &cfg.DataDir)

	str("HTTP_ADDR", &cfg.HTTP.Addr)
	dur("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	dur("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)

	str("GRPC_ADDR", &cfg.GRPC.Addr)
	flag("GRPC_ENABLED", &cfg.GRPC.Enabled)

	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_PATH", &cfg.Store.Path)
	num("STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns)

	num("BENCHMARK_LOOKUP_SAMPLES", &cfg.Benchmark.LookupSamples)
	num("BENCHMARK_MAX_SEED", &cfg.Benchmark.MaxSeed)

	num("STRESS_DEFAULT_CONCURRENCY", &cfg.Stress.DefaultConcurrency)
	num("STRESS_DEFAULT_OPS_PER_USER", &cfg.Stress.DefaultOpsPerUser)

	str("EXPORT_BACKEND", &cfg.Export.Backend)
	str("EXPORT_PATH", &cfg.Export.Path)
	flag("EXPORT_COMPRESS", &cfg.Export.Compress)
	str("S3_BUCKET", &cfg.Export.S3.Bucket)
	str("S3_REGION", &cfg.Export.S3.Region)
	str("S3_ENDPOINT", &cfg.Export.S3.Endpoint)
	str("S3_PREFIX", &cfg.Export.S3.Prefix)
	flag("S3_USE_PATH_STYLE", &cfg.Export.S3.UsePathStyle)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Store.Driver == DriverSQLite && c.Store.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}
	if c.Export.Backend == BackendLocal {
		dirs = append(dirs, c.Export.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
