package tables

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ArtifactReader exposes stored per-file wide tables.
type ArtifactReader interface {
	ReadAll(ctx context.Context, key string) ([]byte, error)
}

// MergeStats describes a merge run.
type MergeStats struct {
	Artifacts int
	InputRows int
	Rows      int
}

// Merger folds per-file wide tables into one table.
type Merger struct {
	src         ArtifactReader
	concurrency int
	log         *slog.Logger
}

// NewMerger creates a merger that decodes up to concurrency artifacts at a
// time.
func NewMerger(src ArtifactReader, concurrency int, log *slog.Logger) *Merger {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Merger{src: src, concurrency: concurrency, log: log.With("component", "merger")}
}

// Merge reads every artifact, sums hour columns per (category, date, place)
// and returns the sorted result. No keys yields an empty table.
func (m *Merger) Merge(ctx context.Context, keys []string) ([]WideRow, MergeStats, error) {
	acc := newAccumulator()
	stats := MergeStats{Artifacts: len(keys)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	var mu sync.Mutex

	for _, key := range keys {
		g.Go(func() error {
			data, err := m.src.ReadAll(gctx, key)
			if err != nil {
				return fmt.Errorf("read artifact %s: %w", key, err)
			}
			rows, err := DecodeParquet(data)
			if err != nil {
				return fmt.Errorf("decode artifact %s: %w", key, err)
			}

			mu.Lock()
			acc.add(rows)
			stats.InputRows += len(rows)
			mu.Unlock()

			m.log.Debug("merged artifact", "key", key, "rows", len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	out := acc.rows()
	stats.Rows = len(out)
	return out, stats, nil
}

type accumulator struct {
	groups map[GroupKey]*[Hours]int64
}

func newAccumulator() *accumulator {
	return &accumulator{groups: make(map[GroupKey]*[Hours]int64)}
}

func (a *accumulator) add(rows []WideRow) {
	for _, r := range rows {
		k := r.Key()
		hours, ok := a.groups[k]
		if !ok {
			hours = new([Hours]int64)
			a.groups[k] = hours
		}
		for h, v := range r.Hours {
			hours[h] += v
		}
	}
}

func (a *accumulator) rows() []WideRow {
	out := make([]WideRow, 0, len(a.groups))
	for k, hours := range a.groups {
		out = append(out, WideRow{Category: k.Category, Date: k.Date, Place: k.Place, Hours: *hours})
	}
	SortRows(out)
	return out
}
