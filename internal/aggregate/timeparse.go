package aggregate

import (
	"math"
	"strings"
	"time"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/schema"
)

// Largest epoch magnitudes that still fit a nanosecond time.Time.
const (
	maxEpochMillis  = math.MaxInt64 / int64(time.Millisecond)
	maxEpochSeconds = math.MaxInt64 / int64(time.Second)
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"01/02/2006",
}

// TimeParser converts event-time values of one column to UTC times.
type TimeParser struct {
	kind schema.Kind
	unit schema.TimeUnit
}

// NewTimeParser returns a parser for values of col. The column kind only
// matters for integer-encoded timestamps and dates; everything else is
// decided per value.
func NewTimeParser(col schema.Column) *TimeParser {
	return &TimeParser{kind: col.Kind, unit: col.Unit}
}

// Parse returns the UTC time of v. Timestamps are used as is; numbers are
// epoch milliseconds, falling back to epoch seconds when milliseconds do not
// fit a nanosecond clock; strings are tried against a fixed set of layouts.
func (p *TimeParser) Parse(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x.UTC(), true
	case string:
		return parseTimeString(x)
	case []byte:
		return parseTimeString(string(x))
	}

	if n, ok := asInt64(v); ok {
		return p.fromInt(n)
	}
	if f, ok := asFloat64(v); ok {
		return fromEpochFloat(f)
	}
	return time.Time{}, false
}

func (p *TimeParser) fromInt(n int64) (time.Time, bool) {
	switch {
	case p.kind == schema.KindDate:
		return time.Unix(0, 0).UTC().AddDate(0, 0, int(n)), true
	case p.kind == schema.KindTimestamp && p.unit != schema.UnitNone:
		switch p.unit {
		case schema.UnitSeconds:
			return time.Unix(n, 0).UTC(), true
		case schema.UnitMillis:
			return time.UnixMilli(n).UTC(), true
		case schema.UnitMicros:
			return time.UnixMicro(n).UTC(), true
		case schema.UnitNanos:
			return time.Unix(0, n).UTC(), true
		}
	}
	if n >= -maxEpochMillis && n <= maxEpochMillis {
		return time.UnixMilli(n).UTC(), true
	}
	if n >= -maxEpochSeconds && n <= maxEpochSeconds {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

func fromEpochFloat(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if math.Abs(f) <= float64(maxEpochMillis) {
		return time.Unix(0, int64(f*float64(time.Millisecond))).UTC(), true
	}
	if math.Abs(f) <= float64(maxEpochSeconds) {
		return time.Unix(0, int64(f*float64(time.Second))).UTC(), true
	}
	return time.Time{}, false
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint8:
		return int64(x), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if n, ok := asInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
