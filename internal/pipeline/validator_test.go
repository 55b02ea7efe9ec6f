package pipeline

import (
	"errors"
	"testing"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/tables"
)

func wideRow(category, date, place string, counts map[int]int64) tables.WideRow {
	r := tables.WideRow{Category: category, Date: date, Place: place}
	for h, n := range counts {
		r.Hours[h] = n
	}
	return r
}

func TestValidateWideTable_Valid(t *testing.T) {
	rows := []tables.WideRow{
		wideRow("green", "2023-01-01", "7", map[int]int64{0: 30, 5: 25}),
		wideRow("yellow", "2023-01-01", "132", map[int]int64{8: 60}),
		wideRow("yellow", "2023-01-02", "132", map[int]int64{23: 51}),
	}

	result := ValidateWideTable(rows, 50)

	if !result.Passed {
		t.Errorf("Valid table should pass. Errors: %v", result.Errors)
	}
	if len(result.Warnings) > 0 {
		t.Errorf("No warnings expected, got: %v", result.Warnings)
	}
	if result.RowCount != 3 {
		t.Errorf("Expected 3 rows, got %d", result.RowCount)
	}
	if result.Total != 166 {
		t.Errorf("Expected total 166, got %d", result.Total)
	}
	if err := result.Err(); err != nil {
		t.Errorf("Err() should be nil, got %v", err)
	}
}

func TestValidateWideTable_Empty(t *testing.T) {
	result := ValidateWideTable(nil, 50)

	if !result.Passed {
		t.Errorf("Empty table should pass. Errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected empty-table warning, got: %v", result.Warnings)
	}
}

func TestValidateWideTable_DuplicateKey(t *testing.T) {
	rows := []tables.WideRow{
		wideRow("yellow", "2023-01-01", "132", map[int]int64{1: 5}),
		wideRow("yellow", "2023-01-01", "132", map[int]int64{2: 5}),
	}

	result := ValidateWideTable(rows, 0)

	if result.Passed {
		t.Error("Duplicate keys should fail validation")
	}
	if !errors.Is(result.Err(), ErrInvalidArtifact) {
		t.Errorf("Expected ErrInvalidArtifact, got %v", result.Err())
	}
}

func TestValidateWideTable_NegativeCount(t *testing.T) {
	rows := []tables.WideRow{
		wideRow("fhv", "2023-01-01", "nan", map[int]int64{3: -1, 4: 100}),
	}

	result := ValidateWideTable(rows, 0)

	if result.Passed {
		t.Error("Negative counts should fail validation")
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error, got: %v", result.Errors)
	}
}

func TestValidateWideTable_BelowMinimum(t *testing.T) {
	rows := []tables.WideRow{
		wideRow("green", "2023-01-01", "7", map[int]int64{0: 49}),
	}

	if ValidateWideTable(rows, 50).Passed {
		t.Error("Row below minimum should fail validation")
	}
	if !ValidateWideTable(rows, 49).Passed {
		t.Error("Row at minimum should pass validation")
	}
}

func TestValidateWideTable_OutOfOrder(t *testing.T) {
	rows := []tables.WideRow{
		wideRow("yellow", "2023-01-01", "132", map[int]int64{0: 1}),
		wideRow("green", "2023-01-01", "7", map[int]int64{0: 1}),
	}

	result := ValidateWideTable(rows, 0)

	if !result.Passed {
		t.Errorf("Ordering is a warning, not an error. Errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected ordering warning, got: %v", result.Warnings)
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{RowsRead: 10, OutOfPeriod: 2, RowsEmitted: 3, RowsPruned: 1},
		{Err: errors.New("boom")},
		{RowsRead: 5, Unparseable: 1, RowsEmitted: 2},
	}

	s := Summarize(results)

	if s.Files != 3 || s.Succeeded != 2 || s.Failed != 1 {
		t.Errorf("Unexpected file counts: %+v", s)
	}
	if s.RowsRead != 15 || s.OutOfPeriod != 2 || s.Unparseable != 1 {
		t.Errorf("Unexpected row counts: %+v", s)
	}
	if s.RowsEmitted != 5 || s.RowsPruned != 1 {
		t.Errorf("Unexpected wide row counts: %+v", s)
	}
	if len(s.Errors) != 1 {
		t.Errorf("Expected 1 file error, got %d", len(s.Errors))
	}
}
