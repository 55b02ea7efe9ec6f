package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/catalog"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/partition"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/schema"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

// Summary is the outcome of a complete run.
type Summary struct {
	RunID     string
	Results   []Result
	Stats     Stats
	Table     *Table
	BatchRows int
	Elapsed   time.Duration
}

// Execute runs every file, publishes the wide table and records the run in
// the catalog. input and output are recorded for lineage only.
func (r *Runner) Execute(ctx context.Context, input, output string, files []source.FileRef, opts PublishOptions) (*Summary, error) {
	start := time.Now()
	if err := r.opts.Catalog.StartRun(ctx, catalog.RunRecord{
		RunID:           r.opts.RunID,
		Input:           input,
		Output:          output,
		Workers:         r.opts.Workers,
		BatchRows:       r.opts.BatchRows,
		MinRides:        r.opts.MinRides,
		ProducerVersion: Producer.Version,
		StartedAt:       start.UTC(),
	}); err != nil {
		r.log.Warn("catalog write failed", "error", err)
	}

	results, stats, err := r.Run(ctx, files)
	if err != nil {
		r.finishRun(ctx, Stats{}, nil, "failed")
		return nil, err
	}

	table, err := r.Publish(ctx, results, opts)
	if err != nil {
		r.finishRun(ctx, stats, nil, "failed")
		return nil, err
	}
	r.finishRun(ctx, stats, table, "succeeded")

	return &Summary{
		RunID:     r.opts.RunID,
		Results:   results,
		Stats:     stats,
		Table:     table,
		BatchRows: r.opts.BatchRows,
		Elapsed:   time.Since(start),
	}, nil
}

func (r *Runner) finishRun(ctx context.Context, stats Stats, table *Table, status string) {
	sum := catalog.RunSummary{
		RunID:           r.opts.RunID,
		Status:          status,
		FilesProcessed:  stats.Succeeded,
		FilesFailed:     stats.Failed,
		InputRows:       stats.RowsRead,
		OutOfPeriodRows: stats.OutOfPeriod,
		LowCountDropped: stats.RowsPruned,
		FinishedAt:      time.Now().UTC(),
	}
	if table != nil {
		sum.OutputRows = int64(table.Rows)
		sum.TableChecksum = table.Checksum
	}
	if err := r.opts.Catalog.FinishRun(ctx, sum); err != nil {
		r.log.Warn("catalog write failed", "error", err)
	}
}

// PreflightResult is the schema check of one file.
type PreflightResult struct {
	File   source.FileRef
	Rows   int64
	Schema schema.Descriptor
	Roles  schema.Roles
	Opened bool // false when the file could not be read as Parquet
	Err    error
}

// Preflight opens up to n files and resolves their column roles without
// reading any rows.
func Preflight(ctx context.Context, cfg source.BucketConfig, files []source.FileRef, n int) []PreflightResult {
	if n > len(files) || n <= 0 {
		n = len(files)
	}
	opener := source.NewOpener(cfg)
	defer opener.Close()

	out := make([]PreflightResult, 0, n)
	for _, f := range files[:n] {
		res := PreflightResult{File: f}
		h, err := source.OpenParquet(ctx, opener, f.URI)
		if err != nil {
			res.Err = err
			out = append(out, res)
			continue
		}
		res.Opened = true
		res.Rows = h.NumRows()
		res.Schema = h.Schema()
		res.Roles, res.Err = schema.Resolve(res.Schema)
		h.Close()
		out = append(out, res)
	}
	return out
}

// RecommendBatchRows runs the partition sizer against one file.
func RecommendBatchRows(ctx context.Context, cfg source.BucketConfig, f source.FileRef, sizer *partition.Sizer) (partition.Recommendation, error) {
	opener := source.NewOpener(cfg)
	defer opener.Close()

	h, err := source.OpenParquet(ctx, opener, f.URI)
	if err != nil {
		return partition.Recommendation{}, fmt.Errorf("open %s for sizing: %w", f.URI, err)
	}
	defer h.Close()
	return sizer.Recommend(ctx, h)
}
