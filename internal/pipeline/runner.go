package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/aggregate"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/catalog"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/logging"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/metrics"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/record"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/schema"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/storage"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/tables"
)

// DefaultBatchRows is used when no batch size is configured.
const DefaultBatchRows = 100_000

// Options configures a Runner.
type Options struct {
	Logger       *slog.Logger
	Store        storage.ArtifactStore // where artifacts are written
	Bucket       source.BucketConfig   // for opening remote inputs
	MinRides     int64
	Workers      int
	BatchRows    int
	WriterConfig tables.WriterConfig
	Catalog      catalog.Writer
	Metrics      *metrics.Metrics
	RunID        string
}

// Runner processes files into artifacts, one file per unit of work.
type Runner struct {
	opts Options
	log  *slog.Logger
}

// NewRunner validates options and fills defaults.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("artifact store required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchRows < 1 {
		opts.BatchRows = DefaultBatchRows
	}
	if opts.MinRides < 0 {
		return nil, fmt.Errorf("min rides must not be negative, got %d", opts.MinRides)
	}
	if _, err := opts.WriterConfig.Codec(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NoopWriter{}
	}
	return &Runner{opts: opts, log: opts.Logger.With("component", "pipeline")}, nil
}

// Run processes every file and returns one result per file in schedule
// order. Per-file failures are reported in the results; the returned error
// is non-nil only when there is nothing to do.
func (r *Runner) Run(ctx context.Context, files []source.FileRef) ([]Result, Stats, error) {
	if len(files) == 0 {
		return nil, Stats{}, ErrNoInputFiles
	}

	r.log.Info("processing files",
		"files", len(files),
		"workers", r.opts.Workers,
		"batch_rows", r.opts.BatchRows,
		"min_rides", r.opts.MinRides,
	)

	var results []Result
	if r.opts.Workers == 1 {
		results = r.runSequential(ctx, files)
	} else {
		r.log.Warn("each worker holds one file's aggregation state; memory grows with the worker count",
			"workers", r.opts.Workers)
		results = r.runParallel(ctx, files)
	}

	stats := Summarize(results)
	r.log.Info("files processed",
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"rows_read", stats.RowsRead,
		"out_of_period", stats.OutOfPeriod,
		"unparseable", stats.Unparseable,
	)
	return results, stats, nil
}

func (r *Runner) runSequential(ctx context.Context, files []source.FileRef) []Result {
	opener := source.NewOpener(r.opts.Bucket)
	defer opener.Close()

	results := make([]Result, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			results[i] = Result{File: f, Err: err}
			continue
		}
		results[i] = r.safeProcess(ctx, opener, f, r.log)
	}
	return results
}

// safeProcess runs ProcessFile, converting a panic into an error result.
func (r *Runner) safeProcess(ctx context.Context, opener *source.Opener, f source.FileRef, log *slog.Logger) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while processing file", "file", f.URI, "panic", p)
			res = Result{File: f, Err: fmt.Errorf("panic: %v", p)}
			r.opts.Metrics.IncFilesFailed()
		}
	}()
	return r.ProcessFile(ctx, opener, f, log)
}

// ProcessFile resolves, streams, aggregates, pivots, prunes and stores one
// file. It never panics on bad input; failures are returned in Result.Err.
func (r *Runner) ProcessFile(ctx context.Context, opener *source.Opener, f source.FileRef, base *slog.Logger) Result {
	start := time.Now()
	period := ""
	if f.Period != nil {
		period = f.Period.String()
	}
	correlationID := logging.GenerateCorrelationID()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log := logging.FileLogger(base, correlationID, f.URI, f.Category, period)

	res := Result{File: f, BatchRows: r.opts.BatchRows}
	fail := func(err error) Result {
		res.Err = err
		res.Duration = time.Since(start)
		log.Warn("file failed", "error", err)
		r.opts.Metrics.IncFilesFailed()
		r.record(ctx, res)
		return res
	}

	h, err := source.OpenParquet(ctx, opener, f.URI)
	if err != nil {
		return fail(err)
	}
	defer h.Close()

	it := h.Iterate(r.opts.BatchRows)
	defer it.Close()

	agg, err := r.aggregateFile(ctx, f, h.Schema(), it.Next, log)
	if err != nil {
		return fail(err)
	}

	stats := agg.Stats()
	res.RowsRead = stats.RowsRead
	res.OutOfPeriod = stats.OutOfPeriod
	res.Unparseable = stats.Unparseable

	wide := tables.Pivot(agg.Counts())
	kept, pruned := tables.Prune(wide, r.opts.MinRides)
	res.RowsEmitted = pruned.Kept
	res.RowsPruned = pruned.Dropped

	if err := ValidateWideTable(kept, r.opts.MinRides).Err(); err != nil {
		return fail(err)
	}

	data, err := tables.EncodeParquet(kept, r.opts.WriterConfig)
	if err != nil {
		return fail(fmt.Errorf("encode artifact: %w", err))
	}
	key := storage.ArtifactKey(f.URI)
	if err := r.opts.Store.Write(ctx, key, data); err != nil {
		return fail(fmt.Errorf("write artifact: %w", err))
	}

	res.ArtifactKey = key
	res.ArtifactURI = r.opts.Store.URI(key)
	res.Checksum = tables.Checksum(data)
	res.ByteSize = int64(len(data))
	res.Duration = time.Since(start)

	log.Info("file processed",
		"rows_read", res.RowsRead,
		"out_of_period", res.OutOfPeriod,
		"unparseable", res.Unparseable,
		"emitted", res.RowsEmitted,
		"pruned", res.RowsPruned,
		"artifact", key,
		"duration_ms", res.Duration.Milliseconds(),
	)
	r.opts.Metrics.ObserveFile(metrics.FileStats{
		Category:    f.Category,
		RowsRead:    res.RowsRead,
		OutOfPeriod: res.OutOfPeriod,
		Unparseable: res.Unparseable,
		Emitted:     res.RowsEmitted,
		Pruned:      res.RowsPruned,
		Duration:    res.Duration,
	})
	r.record(ctx, res)
	return res
}

// nextBatch yields the next batch of a file, or io.EOF when it is drained.
type nextBatch func(ctx context.Context) (*record.Batch, error)

// aggregateFile resolves column roles against the footer schema and folds every
// batch into counts. When the footer does not resolve, the first batch's
// columns are tried before giving up; readers whose batches can carry
// columns the footer lacks depend on that retry.
func (r *Runner) aggregateFile(ctx context.Context, f source.FileRef, desc schema.Descriptor, next nextBatch, log *slog.Logger) (*aggregate.Aggregator, error) {
	roles, resolveErr := schema.Resolve(desc)

	var first *record.Batch
	if resolveErr != nil {
		b, err := next(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if b == nil {
			return nil, resolveErr
		}
		if roles, err = schema.ResolveBatch(roles, schema.FromBatch(b)); err != nil {
			return nil, err
		}
		first = b
	}
	log.Debug("resolved columns",
		"event_time", roles.EventTime,
		"place", roles.Place,
		"lat", roles.Lat,
		"lon", roles.Lon,
	)

	col, _ := desc.Lookup(roles.EventTime)
	normalizer := aggregate.NewNormalizer(roles)
	agg := aggregate.NewAggregator(f.Category, f.Period, aggregate.NewTimeParser(col))

	var rows []aggregate.Row
	consume := func(b *record.Batch) {
		rows = normalizer.Normalize(b, rows[:0])
		agg.Add(rows)
		r.opts.Metrics.ObserveBatch(b.Len())
	}
	if first != nil {
		consume(first)
	}
	for {
		b, err := next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		consume(b)
	}

	// Every parsed row lands in exactly one cell.
	if total, read := agg.Counts().Total(), agg.Stats().RowsRead; total != read {
		return nil, fmt.Errorf("aggregated %d rides from %d parsed rows", total, read)
	}
	return agg, nil
}

// record writes the file outcome to the catalog. Catalog errors are logged.
func (r *Runner) record(ctx context.Context, res Result) {
	rec := catalog.FileRecord{
		RunID:         r.opts.RunID,
		CorrelationID: logging.CorrelationID(ctx),
		URI:           res.File.URI,
		Category:      res.File.Category,
		RowsRead:      res.RowsRead,
		OutOfPeriod:   res.OutOfPeriod,
		Unparseable:   res.Unparseable,
		Emitted:       int64(res.RowsEmitted),
		Pruned:        int64(res.RowsPruned),
		ArtifactKey:   res.ArtifactKey,
		Checksum:      res.Checksum,
		ByteSize:      res.ByteSize,
		Duration:      res.Duration,
	}
	if res.File.Period != nil {
		rec.Period = res.File.Period.String()
	}
	if res.Err != nil {
		rec.Err = res.Err.Error()
	}
	if err := r.opts.Catalog.RecordFile(ctx, rec); err != nil {
		r.log.Warn("catalog write failed", "file", res.File.URI, "error", err)
	}
}
