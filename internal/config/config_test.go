package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(50), cfg.Pipeline.MinRides)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, "tripdata", cfg.Input.Include)

	ceiling, err := cfg.MemoryCeilingBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(1610612736), ceiling)

	opts, err := cfg.SizerOptions()
	require.NoError(t, err)
	assert.Equal(t, []int64{50 << 20, 100 << 20, 200 << 20, 500 << 20}, opts.CandidateBytes)
	assert.Equal(t, 3, opts.SampleBatches)
}

func TestLoadFileThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "taxipivot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input:
  location: s3://nyc-tlc/trip data/
  max_files: 12
pipeline:
  workers: 4
  min_rides: 10
partition:
  size: 200MB
storage:
  s3_region: us-east-1
`), 0644))

	t.Setenv("WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KEEP_INTERMEDIATE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3://nyc-tlc/trip data/", cfg.Input.Location)
	assert.Equal(t, 12, cfg.Input.MaxFiles)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, int64(10), cfg.Pipeline.MinRides)
	assert.Equal(t, "us-east-1", cfg.Storage.S3Region)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Output.KeepIntermediate)
	assert.Equal(t, "tripdata", cfg.Input.Include, "unset keys keep defaults")

	rows, err := cfg.BatchRows()
	require.NoError(t, err)
	assert.Equal(t, 419430, rows)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MIN_RIDES=75\nTAXI_OUTPUT=/tmp/out\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("MIN_RIDES")
		os.Unsetenv("TAXI_OUTPUT")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(75), cfg.Pipeline.MinRides)
	assert.Equal(t, "/tmp/out", cfg.Output.Location)
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pipeline: [oops"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("WORKERS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"negative min rides", func(c *Config) { c.Pipeline.MinRides = -1 }},
		{"negative max files", func(c *Config) { c.Input.MaxFiles = -3 }},
		{"bad partition size", func(c *Config) { c.Partition.Size = "lots" }},
		{"zero partition rows", func(c *Config) { c.Partition.Size = "0" }},
		{"bad ceiling", func(c *Config) { c.Partition.MemoryCeiling = "1.5 parsecs" }},
		{"bad candidate", func(c *Config) { c.Partition.CandidateBytes = []string{"big"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
