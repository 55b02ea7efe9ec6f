// Package catalog records run and per-file lineage in PostgreSQL.
package catalog

import (
	"context"
	"log/slog"
	"time"
)

// Config configures the catalog.
type Config struct {
	PostgresDSN string
	MaxConns    int32
}

// Writer records run lineage.
type Writer interface {
	StartRun(ctx context.Context, rec RunRecord) error
	RecordFile(ctx context.Context, rec FileRecord) error
	FinishRun(ctx context.Context, sum RunSummary) error
	Close() error
}

// RunRecord describes a run when it starts.
type RunRecord struct {
	RunID           string
	Input           string
	Output          string
	Workers         int
	BatchRows       int
	MinRides        int64
	ProducerVersion string
	StartedAt       time.Time
}

// FileRecord describes the outcome of one input file.
type FileRecord struct {
	RunID         string
	CorrelationID string // matches the file's log lines
	URI           string
	Category      string
	Period        string
	RowsRead      int64
	OutOfPeriod   int64
	Unparseable   int64
	Emitted       int64
	Pruned        int64
	ArtifactKey   string
	Checksum      string
	ByteSize      int64
	Err           string
	Duration      time.Duration
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID           string
	Status          string // "succeeded" | "failed"
	FilesProcessed  int
	FilesFailed     int
	InputRows       int64
	OutputRows      int64
	OutOfPeriodRows int64
	LowCountDropped int64
	TableChecksum   string
	FinishedAt      time.Time
}

// NewWriter returns a PostgreSQL writer when a DSN is configured and a
// no-op writer otherwise.
func NewWriter(ctx context.Context, cfg Config, log *slog.Logger) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return NoopWriter{}, nil
	}
	return NewPostgresWriter(ctx, cfg, log)
}

// NoopWriter discards every record.
type NoopWriter struct{}

func (NoopWriter) StartRun(context.Context, RunRecord) error   { return nil }
func (NoopWriter) RecordFile(context.Context, FileRecord) error { return nil }
func (NoopWriter) FinishRun(context.Context, RunSummary) error  { return nil }
func (NoopWriter) Close() error                                 { return nil }
