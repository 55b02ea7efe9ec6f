// Package partition chooses how many rows to read per batch so that reading
// a file stays under a resident-memory ceiling.
package partition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// Probe reports the current resident memory of the process.
type Probe interface {
	ResidentBytes() (uint64, error)
}

// ProcessProbe reads the RSS of the running process.
type ProcessProbe struct {
	proc *process.Process
}

// NewProcessProbe returns a probe for the current process.
func NewProcessProbe() (*ProcessProbe, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open process handle: %w", err)
	}
	return &ProcessProbe{proc: proc}, nil
}

// ResidentBytes implements Probe.
func (p *ProcessProbe) ResidentBytes() (uint64, error) {
	mi, err := p.proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}

// Metadata is the footer information used to estimate bytes per row.
type Metadata struct {
	Rows  int64
	Bytes int64 // serialized object size
}

// Source is a file that can be read repeatedly at a given batch size.
type Source interface {
	Metadata(ctx context.Context) (Metadata, error)
	// Sample opens a fresh read at batchRows and calls onBatch after each
	// of at most maxBatches batches.
	Sample(ctx context.Context, batchRows, maxBatches int, onBatch func()) error
}

// Options configures a Sizer.
type Options struct {
	CandidateBytes     []int64
	Ceiling            uint64
	SampleBatches      int
	DefaultBytesPerRow float64
}

// Trial is the observation for one candidate batch size.
type Trial struct {
	Rows      int
	PeakBytes uint64
	Err       error
}

// Recommendation is the result of a sizing run.
type Recommendation struct {
	BatchRows   int
	BytesPerRow float64
	Trials      []Trial
}

// Sizer tests candidate batch sizes against a memory ceiling.
type Sizer struct {
	opts  Options
	probe Probe
	log   *slog.Logger
}

// NewSizer creates a sizer. A nil logger uses slog.Default.
func NewSizer(opts Options, probe Probe, log *slog.Logger) *Sizer {
	if opts.SampleBatches < 1 {
		opts.SampleBatches = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sizer{opts: opts, probe: probe, log: log.With("component", "partition-sizer")}
}

// Candidates derives ascending, de-duplicated row counts from the byte
// candidates and the file's average bytes per row.
func (s *Sizer) Candidates(meta Metadata) ([]int, float64) {
	bytesPerRow := s.opts.DefaultBytesPerRow
	if meta.Rows > 0 && meta.Bytes > 0 {
		bytesPerRow = float64(meta.Bytes) / float64(meta.Rows)
	}
	if bytesPerRow <= 0 {
		bytesPerRow = 1
	}

	seen := make(map[int]bool, len(s.opts.CandidateBytes))
	out := make([]int, 0, len(s.opts.CandidateBytes))
	for _, b := range s.opts.CandidateBytes {
		rows := int(float64(b) / bytesPerRow)
		if rows < 1 {
			rows = 1
		}
		if !seen[rows] {
			seen[rows] = true
			out = append(out, rows)
		}
	}
	sort.Ints(out)
	return out, bytesPerRow
}

// Recommend returns the largest candidate whose peak resident memory over
// the sampled batches stays within the ceiling. When the smallest candidate
// already exceeds the ceiling it is returned and larger ones are not tried.
// A candidate whose read fails counts as exceeding the ceiling.
func (s *Sizer) Recommend(ctx context.Context, src Source) (Recommendation, error) {
	meta, err := src.Metadata(ctx)
	if err != nil {
		return Recommendation{}, fmt.Errorf("read metadata: %w", err)
	}

	candidates, bytesPerRow := s.Candidates(meta)
	if len(candidates) == 0 {
		return Recommendation{}, fmt.Errorf("no candidate batch sizes configured")
	}

	rec := Recommendation{BatchRows: candidates[0], BytesPerRow: bytesPerRow}
	for i, rows := range candidates {
		trial := s.trial(ctx, src, rows)
		rec.Trials = append(rec.Trials, trial)

		within := trial.Err == nil && trial.PeakBytes <= s.opts.Ceiling
		s.log.Debug("sampled batch size",
			"rows", rows,
			"peak", humanize.IBytes(trial.PeakBytes),
			"ceiling", humanize.IBytes(s.opts.Ceiling),
			"within_budget", within,
			"error", trial.Err,
		)

		if within && rows >= rec.BatchRows {
			rec.BatchRows = rows
		}
		if !within && i == 0 {
			s.log.Warn("smallest batch size exceeds memory ceiling, using it anyway", "rows", rows)
			break
		}
	}

	return rec, nil
}

func (s *Sizer) trial(ctx context.Context, src Source, rows int) Trial {
	t := Trial{Rows: rows}
	var probeErr error
	err := src.Sample(ctx, rows, s.opts.SampleBatches, func() {
		rss, err := s.probe.ResidentBytes()
		if err != nil {
			probeErr = err
			return
		}
		if rss > t.PeakBytes {
			t.PeakBytes = rss
		}
	})
	if err == nil {
		err = probeErr
	}
	t.Err = err
	return t
}
