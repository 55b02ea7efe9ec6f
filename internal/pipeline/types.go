// Package pipeline turns discovered trip-record files into per-file pivot
// artifacts and merges them into the consolidated wide table.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

// ErrNoInputFiles aborts a run that has nothing to process.
var ErrNoInputFiles = errors.New("no input files discovered")

// ErrLostResult tags a dispatched file whose worker never reported back.
var ErrLostResult = errors.New("result lost")

// ErrInvalidArtifact tags a file whose pivot failed validation.
var ErrInvalidArtifact = errors.New("invalid artifact")

// ErrChecksumMismatch tags a stored artifact whose bytes no longer match the
// checksum recorded in the manifest.
var ErrChecksumMismatch = errors.New("artifact checksum mismatch")

// FileTask is sent to workers for processing. Index is the file's position
// in the schedule.
type FileTask struct {
	Index int
	File  source.FileRef
}

// Result is the outcome of one file. One is produced for every scheduled
// file, successful or not.
type Result struct {
	File        source.FileRef
	RowsRead    int64 // rows with a parseable event time
	OutOfPeriod int64
	Unparseable int64
	RowsEmitted int // wide rows written to the artifact
	RowsPruned  int // wide rows dropped for low counts
	ArtifactKey string
	ArtifactURI string
	Checksum    string
	ByteSize    int64
	BatchRows   int
	Duration    time.Duration
	Err         error
}

// OK reports whether the file produced an artifact.
func (r Result) OK() bool { return r.Err == nil }

// FileError pairs a failed file with its error.
type FileError struct {
	URI string
	Err error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.URI, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// Stats are run totals summed over every result.
type Stats struct {
	Files       int
	Succeeded   int
	Failed      int
	RowsRead    int64
	OutOfPeriod int64
	Unparseable int64
	RowsEmitted int64
	RowsPruned  int64
	Errors      []FileError
}

// Add folds one result into the totals.
func (s *Stats) Add(r Result) {
	s.Files++
	if r.Err != nil {
		s.Failed++
		s.Errors = append(s.Errors, FileError{URI: r.File.URI, Err: r.Err})
		return
	}
	s.Succeeded++
	s.RowsRead += r.RowsRead
	s.OutOfPeriod += r.OutOfPeriod
	s.Unparseable += r.Unparseable
	s.RowsEmitted += int64(r.RowsEmitted)
	s.RowsPruned += int64(r.RowsPruned)
}

// Summarize folds results in order.
func Summarize(results []Result) Stats {
	var s Stats
	for _, r := range results {
		s.Add(r)
	}
	return s
}
