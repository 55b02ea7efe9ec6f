// Package aggregate turns raw trip batches into per-hour pickup counts.
//
// A Normalizer reduces each row to an event-time value and a place key; an
// Aggregator parses the event time and folds rows into counts keyed by
// (date, category, place, hour). Counting is order independent, so batch
// size and batch order never change the result.
package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/record"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/schema"
)

// MissingPlace is the place key, or coordinate, of a null or non-numeric
// place value.
const MissingPlace = "nan"

// CoordinateDecimals is the rounding applied to lat/lon place keys
// (about 100m).
const CoordinateDecimals = 3

// Row is one normalized input record.
type Row struct {
	Event any
	Place string
}

// Normalizer maps raw batches onto Rows using resolved roles.
type Normalizer struct {
	roles schema.Roles
}

// NewNormalizer returns a normalizer for the given roles.
func NewNormalizer(roles schema.Roles) *Normalizer {
	return &Normalizer{roles: roles}
}

// Normalize appends one Row per batch row to dst and returns it.
func (n *Normalizer) Normalize(b *record.Batch, dst []Row) []Row {
	if b == nil {
		return dst
	}
	for _, raw := range b.Rows {
		row := Row{Event: raw[n.roles.EventTime]}
		if n.roles.Place != "" {
			row.Place = PlaceString(raw[n.roles.Place])
		} else {
			row.Place = LatLonKey(raw[n.roles.Lat], raw[n.roles.Lon])
		}
		dst = append(dst, row)
	}
	return dst
}

// PlaceString stringifies a discrete place value.
func PlaceString(v any) string {
	switch x := v.(type) {
	case nil:
		return MissingPlace
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case bool:
		return strconv.FormatBool(x)
	}
	if n, ok := asInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

// LatLonKey builds "<lat>_<lon>" with both coordinates rounded to
// CoordinateDecimals.
func LatLonKey(lat, lon any) string {
	return coordinate(lat) + "_" + coordinate(lon)
}

func coordinate(v any) string {
	f, ok := asFloat64(v)
	if !ok {
		if s, isStr := v.(string); isStr {
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return MissingPlace
			}
			f = parsed
		} else {
			return MissingPlace
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return MissingPlace
	}
	scale := math.Pow(10, CoordinateDecimals)
	return formatFloat(math.Round(f*scale)/scale, 64)
}

// formatFloat renders f with the shortest digits that round-trip, always
// keeping a fractional part ("264.0", "-74.0") and switching to exponent
// form outside [1e-4, 1e16), matching the keys of earlier published tables.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return MissingPlace
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, bits)
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
