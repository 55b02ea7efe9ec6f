package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// ParsePoolConfig parses the DSN and applies pool limits.
func ParsePoolConfig(cfg Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = 5
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	return poolCfg, nil
}

// NewPostgresWriter connects to the catalog and creates its tables.
func NewPostgresWriter(ctx context.Context, cfg Config, log *slog.Logger) (*PostgresWriter, error) {
	if log == nil {
		log = slog.Default()
	}
	poolCfg, err := ParsePoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info("connected to PostgreSQL catalog", "host", poolCfg.ConnConfig.Host, "database", poolCfg.ConnConfig.Database)
	return &PostgresWriter{pool: pool, log: log}, nil
}

// StartRun inserts the run row.
func (w *PostgresWriter) StartRun(ctx context.Context, rec RunRecord) error {
	query := `
		INSERT INTO _meta_runs (
			run_id, input_location, output_location, workers, batch_rows,
			min_rides, producer_version, started_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO NOTHING
	`
	_, err := w.pool.Exec(ctx, query,
		rec.RunID,
		rec.Input,
		rec.Output,
		rec.Workers,
		rec.BatchRows,
		rec.MinRides,
		rec.ProducerVersion,
		rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// RecordFile upserts one file outcome.
func (w *PostgresWriter) RecordFile(ctx context.Context, rec FileRecord) error {
	query := `
		INSERT INTO _meta_files (
			run_id, source_uri, category, period, rows_read, out_of_period,
			unparseable, rows_emitted, rows_pruned, artifact_key, checksum,
			byte_size, error, duration_ms, correlation_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (run_id, source_uri)
		DO UPDATE SET
			correlation_id = EXCLUDED.correlation_id,
			rows_read = EXCLUDED.rows_read,
			out_of_period = EXCLUDED.out_of_period,
			unparseable = EXCLUDED.unparseable,
			rows_emitted = EXCLUDED.rows_emitted,
			rows_pruned = EXCLUDED.rows_pruned,
			artifact_key = EXCLUDED.artifact_key,
			checksum = EXCLUDED.checksum,
			byte_size = EXCLUDED.byte_size,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms,
			recorded_at = NOW()
	`
	_, err := w.pool.Exec(ctx, query,
		rec.RunID,
		rec.URI,
		rec.Category,
		nullIfEmpty(rec.Period),
		rec.RowsRead,
		rec.OutOfPeriod,
		rec.Unparseable,
		rec.Emitted,
		rec.Pruned,
		nullIfEmpty(rec.ArtifactKey),
		nullIfEmpty(rec.Checksum),
		rec.ByteSize,
		nullIfEmpty(rec.Err),
		rec.Duration.Milliseconds(),
		nullIfEmpty(rec.CorrelationID),
	)
	if err != nil {
		return fmt.Errorf("record file %s: %w", rec.URI, err)
	}
	w.log.Debug("recorded file lineage", "file", rec.URI)
	return nil
}

// FinishRun closes out the run row.
func (w *PostgresWriter) FinishRun(ctx context.Context, sum RunSummary) error {
	query := `
		UPDATE _meta_runs SET
			status = $2,
			files_processed = $3,
			files_failed = $4,
			input_rows = $5,
			output_rows = $6,
			out_of_period_rows = $7,
			low_count_dropped = $8,
			table_checksum = $9,
			finished_at = $10
		WHERE run_id = $1
	`
	tag, err := w.pool.Exec(ctx, query,
		sum.RunID,
		sum.Status,
		sum.FilesProcessed,
		sum.FilesFailed,
		sum.InputRows,
		sum.OutputRows,
		sum.OutOfPeriodRows,
		sum.LowCountDropped,
		nullIfEmpty(sum.TableChecksum),
		sum.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", sum.RunID, pgx.ErrNoRows)
	}
	return nil
}

// FileCount returns how many files were recorded for a run.
func (w *PostgresWriter) FileCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := w.pool.QueryRow(ctx, `SELECT COUNT(*) FROM _meta_files WHERE run_id = $1`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

// Close releases database connections.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
