package pipeline

import (
	"fmt"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/tables"
)

// ValidationResult contains the outcome of wide-table validation.
type ValidationResult struct {
	Passed   bool
	Errors   []string
	Warnings []string
	RowCount int64
	Total    int64
}

// ValidateWideTable performs quality checks on wide rows before they are
// written:
// - no duplicate (category, date, place) keys
// - no negative hour counts
// - every row's total at least minRides
// - rows in canonical order
func ValidateWideTable(rows []tables.WideRow, minRides int64) ValidationResult {
	result := ValidationResult{Passed: true, RowCount: int64(len(rows))}

	seen := make(map[tables.GroupKey]bool, len(rows))
	for i, r := range rows {
		k := r.Key()
		if seen[k] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("duplicate row for %s/%s/%s", k.Category, k.Date, k.Place))
			result.Passed = false
		}
		seen[k] = true

		for h, n := range r.Hours {
			if n < 0 {
				result.Errors = append(result.Errors,
					fmt.Sprintf("negative count %d in %s for %s/%s/%s", n, tables.HourColumn(h), k.Category, k.Date, k.Place))
				result.Passed = false
			}
		}

		total := r.Total()
		result.Total += total
		if total < minRides {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %s/%s/%s has %d rides, below minimum %d", k.Category, k.Date, k.Place, total, minRides))
			result.Passed = false
		}

		if i > 0 && tables.Less(r, rows[i-1]) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("rows out of order at index %d", i))
		}
	}

	if len(rows) == 0 {
		result.Warnings = append(result.Warnings, "wide table is empty")
	}
	return result
}

// Err returns nil when validation passed, else an error listing failures.
func (v ValidationResult) Err() error {
	if v.Passed {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidArtifact, v.Errors)
}
