// Package report renders the end-of-run summary as LaTeX or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Data is the run summary.
type Data struct {
	RunID           string  `json:"run_id"`
	InputRows       int64   `json:"input_row_count"`
	OutputRows      int64   `json:"output_row_count"`
	BadRowsIgnored  int64   `json:"bad_rows_ignored"`
	OutOfPeriodRows int64   `json:"month_mismatch_rows"`
	LowCountDropped int64   `json:"low_count_dropped"`
	UnparseableRows int64   `json:"unparseable_rows"`
	FilesProcessed  int     `json:"files_processed"`
	FilesFailed     int     `json:"files_failed"`
	BatchRows       int     `json:"batch_rows"`
	MemoryUseBytes  uint64  `json:"memory_use_bytes"`
	MemoryUseMB     float64 `json:"memory_use_mb"`
	RunTimeSeconds  float64 `json:"run_time_seconds"`
	RunTimeMinutes  float64 `json:"run_time_minutes"`
}

// Totals are the counters a run accumulates.
type Totals struct {
	InputRows       int64
	OutputRows      int64
	OutOfPeriodRows int64
	LowCountDropped int64
	UnparseableRows int64
	FilesProcessed  int
	FilesFailed     int
	BatchRows       int
}

// New fills the derived fields. Bad rows are the out-of-period rows plus
// the wide-table rows dropped for low counts.
func New(runID string, t Totals, peakRSS uint64, elapsed time.Duration) Data {
	return Data{
		RunID:           runID,
		InputRows:       t.InputRows,
		OutputRows:      t.OutputRows,
		BadRowsIgnored:  t.OutOfPeriodRows + t.LowCountDropped,
		OutOfPeriodRows: t.OutOfPeriodRows,
		LowCountDropped: t.LowCountDropped,
		UnparseableRows: t.UnparseableRows,
		FilesProcessed:  t.FilesProcessed,
		FilesFailed:     t.FilesFailed,
		BatchRows:       t.BatchRows,
		MemoryUseBytes:  peakRSS,
		MemoryUseMB:     round2(float64(peakRSS) / (1024 * 1024)),
		RunTimeSeconds:  round2(elapsed.Seconds()),
		RunTimeMinutes:  round2(elapsed.Minutes()),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsTeX reports whether a report path selects LaTeX output.
func IsTeX(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".tex")
}

// Render encodes d for the given report path: LaTeX for .tex, indented
// JSON otherwise.
func Render(path string, d Data) ([]byte, error) {
	if IsTeX(path) {
		return []byte(d.TeX()), nil
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return b, nil
}

// TeX returns a standalone LaTeX document.
func (d Data) TeX() string {
	lines := []string{
		`\documentclass{article}`,
		`\begin{document}`,
		`\section{Pipeline Report}`,
		`\begin{itemize}`,
		fmt.Sprintf(`\item Input row count: %d`, d.InputRows),
		fmt.Sprintf(`\item Output row count: %d`, d.OutputRows),
		fmt.Sprintf(`\item Bad rows ignored: %d`, d.BadRowsIgnored),
		fmt.Sprintf(`\item Files processed: %d (%d failed)`, d.FilesProcessed, d.FilesFailed),
		fmt.Sprintf(`\item Memory use (MB): %.2f`, d.MemoryUseMB),
		fmt.Sprintf(`\item Run time (seconds): %.2f`, d.RunTimeSeconds),
		`\end{itemize}`,
		`\end{document}`,
	}
	return strings.Join(lines, "\n")
}

// Summary is a one-line human rendering for logs.
func (d Data) Summary() string {
	return fmt.Sprintf("input rows=%s output rows=%s bad rows=%s memory=%s time=%.2fs",
		humanize.Comma(d.InputRows),
		humanize.Comma(d.OutputRows),
		humanize.Comma(d.BadRowsIgnored),
		humanize.IBytes(d.MemoryUseBytes),
		d.RunTimeSeconds,
	)
}
