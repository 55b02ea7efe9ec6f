package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/catalog"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/category"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/logging"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/metrics"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/partition"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/pipeline"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/report"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/storage"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/tables"
)

// preflightFiles is how many scheduled files have their schema checked
// before processing starts.
const preflightFiles = 5

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Aggregate every input file and publish the wide table",
	RunE:  runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringP("input", "i", "", "input file, directory, s3:// or gs:// prefix")
	f.StringP("output", "o", "", "output directory or bucket URI")
	f.Int64("min-rides", 0, "drop wide rows with fewer rides (default 50)")
	f.Int("workers", 0, "files processed concurrently (default 1)")
	f.String("partition-size", "", "rows per batch, or a size such as 200MB; empty runs the sizer")
	f.Bool("skip-partition-optimization", false, "use the default batch size instead of running the sizer")
	f.String("memory-ceiling", "", "resident memory the sizer must stay under (default 1.5GB)")
	f.Bool("keep-intermediate", false, "keep per-file artifacts after merging")
	f.String("upload", "", "also copy the wide table to this URI")
	f.String("report", "", "report path relative to the output, .tex or .json (default report.tex)")
	f.Int("max-files", 0, "process only the first N scheduled files")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.String("catalog-dsn", "", "PostgreSQL DSN for the run catalog")
}

func applyRunFlags(cmd *cobra.Command) {
	stringFlag(cmd, "input", &cfg.Input.Location)
	stringFlag(cmd, "output", &cfg.Output.Location)
	stringFlag(cmd, "partition-size", &cfg.Partition.Size)
	stringFlag(cmd, "memory-ceiling", &cfg.Partition.MemoryCeiling)
	stringFlag(cmd, "upload", &cfg.Output.Upload)
	stringFlag(cmd, "report", &cfg.Output.Report)
	stringFlag(cmd, "metrics-addr", &cfg.Metrics.Address)
	stringFlag(cmd, "catalog-dsn", &cfg.Catalog.PostgresDSN)
	intFlag(cmd, "workers", &cfg.Pipeline.Workers)
	intFlag(cmd, "max-files", &cfg.Input.MaxFiles)
	boolFlag(cmd, "skip-partition-optimization", &cfg.Partition.SkipOptimization)
	boolFlag(cmd, "keep-intermediate", &cfg.Output.KeepIntermediate)
	if cmd.Flags().Changed("min-rides") {
		cfg.Pipeline.MinRides, _ = cmd.Flags().GetInt64("min-rides")
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	applyRunFlags(cmd)
	if cfg.Input.Location == "" || cfg.Output.Location == "" {
		return errors.New("--input and --output are required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.Component("main")
	runID := uuid.NewString()
	log.Info("starting run", "run_id", runID, "version", version, "input", cfg.Input.Location, "output", cfg.Output.Location)

	m := metrics.Init(cfg.Metrics.Namespace)
	if cfg.Metrics.Address != "" {
		go func() {
			if err := m.StartServer(ctx, cfg.Metrics.Address); err != nil {
				log.Error("metrics server failed", "address", cfg.Metrics.Address, "error", err)
			}
		}()
		log.Info("serving metrics", "address", cfg.Metrics.Address)
	}

	router, err := loadRouter()
	if err != nil {
		return err
	}

	bucket := bucketConfig()
	files, err := source.Discover(ctx, cfg.Input.Location, source.DiscoverOptions{
		Bucket:  bucket,
		Router:  router,
		Include: cfg.Input.Include,
		Max:     cfg.Input.MaxFiles,
		Log:     logging.Component("discover"),
	})
	if err != nil {
		return fmt.Errorf("discover inputs: %w", err)
	}
	if len(files) == 0 {
		return pipeline.ErrNoInputFiles
	}
	checkSchemas(ctx, bucket, files, log)

	batchRows, err := chooseBatchRows(ctx, files[0], log)
	if err != nil {
		return err
	}
	m.SetRecommendedBatchRows(batchRows)

	store, err := storage.NewArtifactStore(ctx, storage.Config{Root: cfg.Output.Location, Bucket: bucket})
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer store.Close()

	cat, err := catalog.NewWriter(ctx, catalog.Config{
		PostgresDSN: cfg.Catalog.PostgresDSN,
		MaxConns:    cfg.Catalog.MaxConns,
	}, logging.Component("catalog"))
	if err != nil {
		log.Warn("catalog unavailable, continuing without it", "error", err)
		cat = catalog.NoopWriter{}
	}
	defer cat.Close()

	runner, err := pipeline.NewRunner(pipeline.Options{
		Logger:       slog.Default(),
		Store:        store,
		Bucket:       bucket,
		MinRides:     cfg.Pipeline.MinRides,
		Workers:      cfg.Pipeline.Workers,
		BatchRows:    batchRows,
		WriterConfig: tables.WriterConfig{CompressionLevel: cfg.Output.Compression},
		Catalog:      cat,
		Metrics:      m,
		RunID:        runID,
	})
	if err != nil {
		return err
	}

	sum, err := runner.Execute(ctx, cfg.Input.Location, cfg.Output.Location, files, pipeline.PublishOptions{
		KeepIntermediate: cfg.Output.KeepIntermediate,
	})
	if err != nil {
		return err
	}
	for _, fe := range sum.Stats.Errors {
		log.Warn("file skipped", "file", fe.URI, "error", fe.Err)
	}

	peak, err := report.PeakRSS()
	if err != nil {
		log.Warn("could not read peak memory", "error", err)
	}
	data := report.New(runID, report.Totals{
		InputRows:       sum.Stats.RowsRead,
		OutputRows:      int64(sum.Table.Rows),
		OutOfPeriodRows: sum.Stats.OutOfPeriod,
		LowCountDropped: sum.Stats.RowsPruned,
		UnparseableRows: sum.Stats.Unparseable,
		FilesProcessed:  sum.Stats.Succeeded,
		FilesFailed:     sum.Stats.Failed,
		BatchRows:       sum.BatchRows,
	}, peak, sum.Elapsed)

	if err := writeReport(ctx, store, data); err != nil {
		log.Error("failed to write report", "error", err)
	}

	if cfg.Output.Upload != "" {
		if err := storage.Upload(ctx, cfg.Output.Upload, sum.Table.Data, bucket); err != nil {
			log.Error("upload failed", "destination", cfg.Output.Upload, "error", err)
		} else {
			log.Info("wide table uploaded", "destination", cfg.Output.Upload)
		}
	}

	cmd.Println(data.Summary())
	log.Info("run complete", "run_id", runID, "table", sum.Table.URI)
	return nil
}

// checkSchemas resolves the leading files' columns before any rows are read
// so that unusable inputs show up at the start of a long run.
func checkSchemas(ctx context.Context, bucket source.BucketConfig, files []source.FileRef, log *slog.Logger) {
	checks := pipeline.Preflight(ctx, bucket, files, preflightFiles)
	usable := 0
	for _, c := range checks {
		if c.Err != nil {
			log.Warn("file will be skipped", "file", c.File.URI, "error", c.Err)
			continue
		}
		usable++
		log.Debug("schema resolved", "file", c.File.URI, "event_time", c.Roles.EventTime, "place", c.Roles.Place)
	}
	log.Info("schema check", "checked", len(checks), "usable", usable)
}

func loadRouter() (*category.Router, error) {
	if cfg.Input.CategoryRules == "" {
		return category.MustDefault(), nil
	}
	rules, err := category.LoadRules(cfg.Input.CategoryRules)
	if err != nil {
		return nil, err
	}
	return category.NewRouter(rules)
}

// chooseBatchRows honours an explicit partition size, then the skip flag,
// then asks the sizer using the first scheduled file. A failed sizing run
// falls back to the default.
func chooseBatchRows(ctx context.Context, first source.FileRef, log *slog.Logger) (int, error) {
	if cfg.Partition.Size != "" {
		return cfg.BatchRows()
	}
	if cfg.Partition.SkipOptimization {
		return pipeline.DefaultBatchRows, nil
	}

	opts, err := cfg.SizerOptions()
	if err != nil {
		return 0, err
	}
	probe, err := partition.NewProcessProbe()
	if err != nil {
		log.Warn("memory probe unavailable, using default batch size", "error", err)
		return pipeline.DefaultBatchRows, nil
	}
	sizer := partition.NewSizer(opts, probe, slog.Default())
	rec, err := pipeline.RecommendBatchRows(ctx, bucketConfig(), first, sizer)
	if err != nil {
		log.Warn("partition sizing failed, using default batch size", "file", first.URI, "error", err)
		return pipeline.DefaultBatchRows, nil
	}
	log.Info("partition size chosen", "batch_rows", rec.BatchRows, "bytes_per_row", rec.BytesPerRow, "file", first.URI)
	return rec.BatchRows, nil
}

// writeReport stores the report next to the wide table, or at an absolute
// path when one is configured.
func writeReport(ctx context.Context, store storage.ArtifactStore, d report.Data) error {
	path := cfg.Output.Report
	if path == "" {
		return nil
	}
	rendered, err := report.Render(path, d)
	if err != nil {
		return err
	}
	if filepath.IsAbs(path) {
		return storage.Upload(ctx, path, rendered, bucketConfig())
	}
	if err := store.Write(ctx, filepath.ToSlash(path), rendered); err != nil {
		return err
	}
	slog.Info("report written", "uri", store.URI(filepath.ToSlash(path)))
	return nil
}
