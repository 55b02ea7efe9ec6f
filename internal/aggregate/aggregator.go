package aggregate

import (
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/record"
)

// DateLayout is the layout of Key.Date.
const DateLayout = "2006-01-02"

// Key identifies one count cell.
type Key struct {
	Date     string
	Category string
	Place    string
	Hour     int
}

// Counts maps keys to pickup counts.
type Counts map[Key]int64

// Total sums every count.
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// Stats are the row counters of one file.
type Stats struct {
	RowsRead    int64 // rows with a parsed event time
	OutOfPeriod int64 // parsed rows outside the file's period, still counted
	Unparseable int64 // rows dropped because the event time did not parse
}

// Aggregator accumulates counts for one file across all its batches.
type Aggregator struct {
	category string
	period   *record.Period
	parser   *TimeParser
	counts   Counts
	stats    Stats
}

// NewAggregator returns an empty aggregator. A nil period disables the
// out-of-period check.
func NewAggregator(category string, period *record.Period, parser *TimeParser) *Aggregator {
	return &Aggregator{
		category: category,
		period:   period,
		parser:   parser,
		counts:   make(Counts),
	}
}

// Add folds rows into the running counts.
func (a *Aggregator) Add(rows []Row) {
	for _, r := range rows {
		t, ok := a.parser.Parse(r.Event)
		if !ok {
			a.stats.Unparseable++
			continue
		}
		a.stats.RowsRead++
		if a.period != nil && !a.period.Contains(t) {
			a.stats.OutOfPeriod++
		}
		a.counts[Key{
			Date:     t.Format(DateLayout),
			Category: a.category,
			Place:    r.Place,
			Hour:     t.Hour(),
		}]++
	}
}

// Counts returns the accumulated counts. The map is owned by the
// aggregator.
func (a *Aggregator) Counts() Counts { return a.counts }

// Stats returns the row counters so far.
func (a *Aggregator) Stats() Stats { return a.stats }
