package tables

import (
	"fmt"
	"sort"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/aggregate"
)

// Hours is the number of hour columns in a wide row.
const Hours = 24

// Canonical column names of the wide table.
const (
	ColumnCategory = "taxi_type"
	ColumnDate     = "date"
	ColumnPlace    = "pickup_place"
)

// DefaultMinRides is the default pruning threshold.
const DefaultMinRides = 50

// HourColumn returns the name of the column for hour h.
func HourColumn(h int) string {
	return fmt.Sprintf("hour_%d", h)
}

// Header returns the canonical column order.
func Header() []string {
	cols := []string{ColumnCategory, ColumnDate, ColumnPlace}
	for h := 0; h < Hours; h++ {
		cols = append(cols, HourColumn(h))
	}
	return cols
}

// GroupKey identifies one wide row.
type GroupKey struct {
	Category string
	Date     string
	Place    string
}

// WideRow is one (category, date, place) group with its hourly counts.
type WideRow struct {
	Category string
	Date     string
	Place    string
	Hours    [Hours]int64
}

// Key returns the row's group key.
func (r WideRow) Key() GroupKey {
	return GroupKey{Category: r.Category, Date: r.Date, Place: r.Place}
}

// Total sums the hour columns.
func (r WideRow) Total() int64 {
	var n int64
	for _, v := range r.Hours {
		n += v
	}
	return n
}

// Pivot reshapes counts into one row per (category, date, place) with every
// hour present. Rows are sorted by category, date, then place. Empty counts
// give an empty result.
func Pivot(counts aggregate.Counts) []WideRow {
	groups := make(map[GroupKey]*WideRow)
	for k, n := range counts {
		if k.Hour < 0 || k.Hour >= Hours {
			continue
		}
		gk := GroupKey{Category: k.Category, Date: k.Date, Place: k.Place}
		row, ok := groups[gk]
		if !ok {
			row = &WideRow{Category: gk.Category, Date: gk.Date, Place: gk.Place}
			groups[gk] = row
		}
		row.Hours[k.Hour] += n
	}

	out := make([]WideRow, 0, len(groups))
	for _, row := range groups {
		out = append(out, *row)
	}
	SortRows(out)
	return out
}

// Less orders rows by category, date, then place.
func Less(a, b WideRow) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.Place < b.Place
}

// SortRows sorts rows in canonical order.
func SortRows(rows []WideRow) {
	sort.Slice(rows, func(i, j int) bool { return Less(rows[i], rows[j]) })
}

// PruneStats reports how many rows Prune kept and dropped.
type PruneStats struct {
	Kept    int
	Dropped int
}

// Prune keeps rows whose total is at least minRides. The input slice is
// not modified.
func Prune(rows []WideRow, minRides int64) ([]WideRow, PruneStats) {
	kept := make([]WideRow, 0, len(rows))
	for _, r := range rows {
		if r.Total() >= minRides {
			kept = append(kept, r)
		}
	}
	return kept, PruneStats{Kept: len(kept), Dropped: len(rows) - len(kept)}
}
