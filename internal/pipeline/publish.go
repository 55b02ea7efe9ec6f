package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/storage"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/tables"
)

// Producer identifies this software in manifests.
var Producer = storage.ProducerInfo{Name: "taxipivot", Version: "dev"}

// PublishOptions configures Publish.
type PublishOptions struct {
	KeepIntermediate bool
}

// Table describes the published wide table.
type Table struct {
	Key         string
	URI         string
	ManifestURI string
	Rows        int
	Checksum    string
	ByteSize    int64
	Merge       tables.MergeStats
	Data        []byte // encoded table, kept for uploads
}

// Publish merges the artifacts of successful results into the final wide
// table, writes it with its manifest, and removes intermediates unless
// asked to keep them. An empty or all-failed run publishes an empty table
// with the canonical header.
func (r *Runner) Publish(ctx context.Context, results []Result, opts PublishOptions) (*Table, error) {
	store := r.opts.Store

	var keys []string
	for _, res := range results {
		if res.OK() && res.ArtifactKey != "" {
			keys = append(keys, res.ArtifactKey)
		}
	}

	start := time.Now()
	merger := tables.NewMerger(store, r.opts.Workers, r.log)
	rows, mergeStats, err := merger.Merge(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("merge artifacts: %w", err)
	}
	r.opts.Metrics.ObserveMerge(time.Since(start))

	// Ride minimums were enforced per artifact; merging only adds counts.
	if err := ValidateWideTable(rows, 0).Err(); err != nil {
		return nil, fmt.Errorf("merged table: %w", err)
	}

	data, err := tables.EncodeParquet(rows, r.opts.WriterConfig)
	if err != nil {
		return nil, fmt.Errorf("encode wide table: %w", err)
	}
	checksum := tables.Checksum(data)

	manifest := r.buildManifest(results, opts.KeepIntermediate)
	manifest.Table = storage.TableInfo{
		File:     storage.FinalTableKey,
		Checksum: checksum,
		RowCount: int64(len(rows)),
		ByteSize: int64(len(data)),
	}
	manifestData, err := manifest.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	tempTable, err := store.WriteTemp(ctx, storage.FinalTableKey, data)
	if err != nil {
		return nil, fmt.Errorf("write wide table: %w", err)
	}
	tempManifest, err := store.WriteTemp(ctx, storage.ManifestKey, manifestData)
	if err != nil {
		store.Abort(ctx, []string{tempTable})
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	moves := []storage.Move{
		{TempKey: tempTable, FinalKey: storage.FinalTableKey},
		{TempKey: tempManifest, FinalKey: storage.ManifestKey},
	}
	if err := store.Finalize(ctx, moves); err != nil {
		return nil, fmt.Errorf("publish wide table: %w", err)
	}

	r.log.Info("wide table published",
		"uri", store.URI(storage.FinalTableKey),
		"artifacts", mergeStats.Artifacts,
		"input_rows", mergeStats.InputRows,
		"rows", len(rows),
		"checksum", checksum,
	)

	if !opts.KeepIntermediate && len(keys) > 0 {
		if err := store.Remove(ctx, keys...); err != nil {
			r.log.Warn("failed to remove intermediate artifacts", "error", err)
		} else {
			r.log.Debug("removed intermediate artifacts", "count", len(keys))
		}
	}

	return &Table{
		Key:         storage.FinalTableKey,
		URI:         store.URI(storage.FinalTableKey),
		ManifestURI: store.URI(storage.ManifestKey),
		Rows:        len(rows),
		Checksum:    checksum,
		ByteSize:    int64(len(data)),
		Merge:       mergeStats,
		Data:        data,
	}, nil
}

func (r *Runner) buildManifest(results []Result, keep bool) *storage.Manifest {
	m := &storage.Manifest{
		RunID:     r.opts.RunID,
		Artifacts: []storage.ArtifactInfo{},
		Producer:  Producer,
		CreatedAt: time.Now().UTC(),
	}
	for _, res := range results {
		if !res.OK() {
			m.Failed = append(m.Failed, storage.FailedInfo{Source: res.File.URI, Error: res.Err.Error()})
			continue
		}
		m.Artifacts = append(m.Artifacts, storage.ArtifactInfo{
			Source:   res.File.URI,
			File:     res.ArtifactKey,
			Checksum: res.Checksum,
			RowCount: int64(res.RowsEmitted),
			ByteSize: res.ByteSize,
			Kept:     keep,
		})
	}
	return m
}

// Remerge publishes a wide table from the intermediate artifacts already in
// the store, for example those kept by an earlier run. Artifacts listed in
// the stored manifest must still match their recorded checksum; those that
// do not are left out of the table and reported as failed.
func (r *Runner) Remerge(ctx context.Context, opts PublishOptions) (*Table, error) {
	store := r.opts.Store
	keys, err := store.List(ctx, storage.IntermediatePrefix)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	recorded := make(map[string]storage.ArtifactInfo)
	manifest, err := storage.ReadManifest(ctx, store)
	switch {
	case err == nil:
		for _, a := range manifest.Artifacts {
			recorded[a.File] = a
		}
	case errors.Is(err, storage.ErrNotFound):
		r.log.Info("no manifest found, artifacts are merged unverified")
	default:
		r.log.Warn("unreadable manifest, artifacts are merged unverified", "error", err)
	}

	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		results = append(results, r.verifyArtifact(ctx, key, recorded))
	}
	r.log.Info("re-merging stored artifacts", "artifacts", len(keys), "recorded", len(recorded))
	return r.Publish(ctx, results, opts)
}

func (r *Runner) verifyArtifact(ctx context.Context, key string, recorded map[string]storage.ArtifactInfo) Result {
	res := Result{File: source.FileRef{URI: r.opts.Store.URI(key)}, ArtifactKey: key}
	info, known := recorded[key]
	if known && info.Source != "" {
		res.File.URI = info.Source
	}

	data, err := r.opts.Store.ReadAll(ctx, key)
	if err != nil {
		res.Err = fmt.Errorf("read artifact %s: %w", key, err)
		return res
	}
	if known && info.Checksum != "" && !tables.VerifyChecksum(data, info.Checksum) {
		res.Err = fmt.Errorf("%w: %s", ErrChecksumMismatch, key)
		r.log.Warn("skipping modified artifact", "key", key, "recorded", info.Checksum)
		return res
	}
	res.Checksum = tables.Checksum(data)
	res.ByteSize = int64(len(data))
	if known {
		res.RowsEmitted = int(info.RowCount)
	} else if rows, err := tables.DecodeParquet(data); err == nil {
		res.RowsEmitted = len(rows)
	}
	return res
}
