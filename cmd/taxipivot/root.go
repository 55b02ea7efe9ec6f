package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/config"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/logging"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

var (
	cfg       config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "taxipivot",
	Short: "Pivot taxi trip records into hourly pickup counts",
	Long: `Reads monthly taxi trip-record Parquet files, counts pickups per
(taxi type, date, pickup place, hour) and publishes one wide table with a
column per hour of day.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")
	pf.String("log-file", "", "also append JSON logs to this file")
	pf.String("s3-endpoint", "", "S3-compatible endpoint for s3:// locations")
	pf.String("s3-region", "", "region for s3:// locations")

	rootCmd.AddCommand(runCmd, schemaCmd, mergeCmd)
}

// setup loads configuration, applies flags that were set explicitly and
// installs the default logger.
func setup(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded

	stringFlag(cmd, "log-level", &cfg.Logging.Level)
	stringFlag(cmd, "log-format", &cfg.Logging.Format)
	stringFlag(cmd, "log-file", &cfg.Logging.File)
	stringFlag(cmd, "s3-endpoint", &cfg.Storage.S3Endpoint)
	stringFlag(cmd, "s3-region", &cfg.Storage.S3Region)

	logCloser, err = logging.Setup(logging.Config{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	slog.Debug("configuration loaded", "config_file", path, "version", version, "git_sha", gitSHA)
	return nil
}

// Flags override configuration only when set on the command line.

func stringFlag(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func intFlag(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func boolFlag(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

func bucketConfig() source.BucketConfig {
	return source.BucketConfig{
		S3Endpoint: cfg.Storage.S3Endpoint,
		S3Region:   cfg.Storage.S3Region,
	}
}
