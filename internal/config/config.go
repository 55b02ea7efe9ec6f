// Package config loads run configuration from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/partition"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/tables"
)

// Named defaults.
const (
	DefaultMinRides         = tables.DefaultMinRides
	DefaultWorkers          = 1
	DefaultBatchRows        = 100_000
	DefaultBytesPerRow      = 500
	DefaultMinBatchRows     = 10_000
	DefaultMemoryCeiling    = "1.5GB"
	DefaultSampleBatches    = 3
	DefaultProbeBatchRows   = 1000
	DefaultIncludeSubstring = "tripdata"
	DefaultReportPath       = "report.tex"
	DefaultMetricsNamespace = "taxipivot"
)

// DefaultCandidateBytes are the batch byte budgets the sizer tries.
var DefaultCandidateBytes = []string{"50MB", "100MB", "200MB", "500MB"}

type Config struct {
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Partition PartitionConfig `yaml:"partition"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type InputConfig struct {
	Location      string `yaml:"location"`
	Include       string `yaml:"include"`
	MaxFiles      int    `yaml:"max_files"`
	CategoryRules string `yaml:"category_rules"` // optional YAML rule file
}

type OutputConfig struct {
	Location         string `yaml:"location"`
	KeepIntermediate bool   `yaml:"keep_intermediate"`
	Upload           string `yaml:"upload"`
	Report           string `yaml:"report"`
	Compression      string `yaml:"compression"`
}

type PipelineConfig struct {
	MinRides int64 `yaml:"min_rides"`
	Workers  int   `yaml:"workers"`
}

type PartitionConfig struct {
	Size             string   `yaml:"size"` // rows or size string; empty means "optimize"
	SkipOptimization bool     `yaml:"skip_optimization"`
	MemoryCeiling    string   `yaml:"memory_ceiling"`
	CandidateBytes   []string `yaml:"candidate_bytes"`
	SampleBatches    int      `yaml:"sample_batches"`
	ProbeBatchRows   int      `yaml:"probe_batch_rows"`
}

// StorageConfig carries S3-compatible endpoint settings shared by input
// and output locations.
type StorageConfig struct {
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`
}

type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	MaxConns    int32  `yaml:"max_conns"`
}

type MetricsConfig struct {
	Address   string `yaml:"address"` // empty disables the server
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Input: InputConfig{
			Include: DefaultIncludeSubstring,
		},
		Output: OutputConfig{
			Report:      DefaultReportPath,
			Compression: tables.DefaultCompressionLevel,
		},
		Pipeline: PipelineConfig{
			MinRides: DefaultMinRides,
			Workers:  DefaultWorkers,
		},
		Partition: PartitionConfig{
			MemoryCeiling:  DefaultMemoryCeiling,
			CandidateBytes: append([]string(nil), DefaultCandidateBytes...),
			SampleBatches:  DefaultSampleBatches,
			ProbeBatchRows: DefaultProbeBatchRows,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds the configuration. A missing .env file is ignored; a missing
// config file named explicitly is an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Input.Location = getenvDefault("TAXI_INPUT", c.Input.Location)
	c.Input.Include = getenvDefault("TAXI_INCLUDE", c.Input.Include)
	c.Input.CategoryRules = getenvDefault("TAXI_CATEGORY_RULES", c.Input.CategoryRules)
	c.Output.Location = getenvDefault("TAXI_OUTPUT", c.Output.Location)
	c.Output.Upload = getenvDefault("TAXI_UPLOAD", c.Output.Upload)
	c.Output.Report = getenvDefault("TAXI_REPORT", c.Output.Report)
	c.Output.Compression = getenvDefault("TAXI_COMPRESSION", c.Output.Compression)
	c.Partition.Size = getenvDefault("PARTITION_SIZE", c.Partition.Size)
	c.Partition.MemoryCeiling = getenvDefault("MEMORY_CEILING", c.Partition.MemoryCeiling)
	c.Storage.S3Endpoint = getenvDefault("S3_ENDPOINT", c.Storage.S3Endpoint)
	c.Storage.S3Region = getenvDefault("S3_REGION", getenvDefault("AWS_REGION", c.Storage.S3Region))
	c.Catalog.PostgresDSN = getenvDefault("CATALOG_DSN", c.Catalog.PostgresDSN)
	c.Metrics.Address = getenvDefault("METRICS_ADDR", c.Metrics.Address)
	c.Logging.Format = getenvDefault("LOG_FORMAT", c.Logging.Format)
	c.Logging.Level = getenvDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getenvDefault("LOG_FILE", c.Logging.File)

	if os.Getenv("KEEP_INTERMEDIATE") == "true" {
		c.Output.KeepIntermediate = true
	}
	if os.Getenv("SKIP_PARTITION_OPTIMIZATION") == "true" {
		c.Partition.SkipOptimization = true
	}

	var err error
	if c.Pipeline.Workers, err = getenvInt("WORKERS", c.Pipeline.Workers); err != nil {
		return err
	}
	if c.Input.MaxFiles, err = getenvInt("MAX_FILES", c.Input.MaxFiles); err != nil {
		return err
	}
	minRides, err := getenvInt("MIN_RIDES", int(c.Pipeline.MinRides))
	if err != nil {
		return err
	}
	c.Pipeline.MinRides = int64(minRides)
	return nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MinRides < 0 {
		return fmt.Errorf("min rides must not be negative, got %d", c.Pipeline.MinRides)
	}
	if c.Input.MaxFiles < 0 {
		return fmt.Errorf("max files must not be negative, got %d", c.Input.MaxFiles)
	}
	if c.Partition.Size != "" {
		if _, err := c.BatchRows(); err != nil {
			return err
		}
	}
	if _, err := c.MemoryCeilingBytes(); err != nil {
		return err
	}
	if _, err := c.CandidateBytes(); err != nil {
		return err
	}
	return nil
}

// BatchRows converts Partition.Size to a row count.
func (c Config) BatchRows() (int, error) {
	return partition.ParseBatchRows(c.Partition.Size, DefaultBytesPerRow, DefaultMinBatchRows)
}

// MemoryCeilingBytes parses Partition.MemoryCeiling.
func (c Config) MemoryCeilingBytes() (uint64, error) {
	n, err := partition.ParseSize(c.Partition.MemoryCeiling)
	if err != nil {
		return 0, fmt.Errorf("memory ceiling: %w", err)
	}
	return uint64(n), nil
}

// CandidateBytes parses Partition.CandidateBytes.
func (c Config) CandidateBytes() ([]int64, error) {
	out := make([]int64, 0, len(c.Partition.CandidateBytes))
	for _, s := range c.Partition.CandidateBytes {
		n, err := partition.ParseSize(s)
		if err != nil {
			return nil, fmt.Errorf("candidate size: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// SizerOptions assembles the partition sizer configuration.
func (c Config) SizerOptions() (partition.Options, error) {
	ceiling, err := c.MemoryCeilingBytes()
	if err != nil {
		return partition.Options{}, err
	}
	candidates, err := c.CandidateBytes()
	if err != nil {
		return partition.Options{}, err
	}
	return partition.Options{
		CandidateBytes:     candidates,
		Ceiling:            ceiling,
		SampleBatches:      c.Partition.SampleBatches,
		DefaultBytesPerRow: DefaultBytesPerRow,
	}, nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
