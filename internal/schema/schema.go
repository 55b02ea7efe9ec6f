// Package schema resolves which columns of a trip-record file carry the
// pickup time and the pickup place.
//
// Resolution only ever looks at a Descriptor, an ordered list of column
// names and kinds. Readers build a Descriptor from the file footer; when that
// is not enough the caller builds a second one from a sample batch and
// resolves again with the same rules.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/record"
)

// ErrUnresolvable is returned when a file has no event-time column, or has
// neither a discrete place column nor a complete lat/lon pair.
var ErrUnresolvable = errors.New("unresolvable schema")

// Kind is the coarse physical type of a column.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimestamp
	KindDate
	KindInt
	KindFloat
	KindString
	KindBool
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// TimeUnit is the resolution of an integer-encoded timestamp column.
type TimeUnit int

const (
	UnitNone TimeUnit = iota
	UnitSeconds
	UnitMillis
	UnitMicros
	UnitNanos
)

// Column is one (name, type) pair of a file schema.
type Column struct {
	Name string
	Kind Kind
	Unit TimeUnit // only set for KindTimestamp
}

// Descriptor is the ordered column list of one file.
type Descriptor struct {
	Columns []Column
}

// FromNames builds a Descriptor with unknown kinds from a list of names.
func FromNames(names []string) Descriptor {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return Descriptor{Columns: cols}
}

// FromBatch builds a Descriptor from the column names of a sample batch.
// When the batch carries no explicit column list the names of its first row
// are used, sorted for determinism.
func FromBatch(b *record.Batch) Descriptor {
	if b == nil {
		return Descriptor{}
	}
	if len(b.Columns) > 0 {
		return FromNames(b.Columns)
	}
	if len(b.Rows) == 0 {
		return Descriptor{}
	}
	names := make([]string, 0, len(b.Rows[0]))
	for k := range b.Rows[0] {
		names = append(names, k)
	}
	sort.Strings(names)
	return FromNames(names)
}

// Names returns the column names in order.
func (d Descriptor) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Lookup returns the column with the given exact name.
func (d Descriptor) Lookup(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Roles is the resolved column mapping of one file. Place is set when a
// discrete place column exists; otherwise Lat and Lon are both set or both
// empty.
type Roles struct {
	EventTime string
	Place     string
	Lat       string
	Lon       string
}

// HasTime reports whether the event-time role resolved.
func (r Roles) HasTime() bool { return r.EventTime != "" }

// HasPlace reports whether a discrete place or a full lat/lon pair resolved.
func (r Roles) HasPlace() bool {
	return r.Place != "" || (r.Lat != "" && r.Lon != "")
}

// Complete reports whether the file can be aggregated with these roles.
func (r Roles) Complete() bool { return r.HasTime() && r.HasPlace() }

// Merge fills roles missing from r with those resolved in other. A discrete
// place always wins over a lat/lon pair.
func (r Roles) Merge(other Roles) Roles {
	out := r
	if out.EventTime == "" {
		out.EventTime = other.EventTime
	}
	if out.Place == "" && other.Place != "" {
		out.Place = other.Place
	}
	if out.Place != "" {
		out.Lat, out.Lon = "", ""
	} else if out.Lat == "" || out.Lon == "" {
		out.Lat, out.Lon = other.Lat, other.Lon
	}
	return out
}

func (r Roles) missing() string {
	var parts []string
	if !r.HasTime() {
		parts = append(parts, "pickup datetime")
	}
	if !r.HasPlace() {
		parts = append(parts, "pickup location or lat/lon")
	}
	return strings.Join(parts, " and ")
}

// Resolve maps a Descriptor onto Roles. It returns the partial mapping
// together with an error wrapping ErrUnresolvable when the roles are
// incomplete.
func Resolve(d Descriptor) (Roles, error) {
	names := d.Names()
	r := Roles{
		EventTime: ResolveEventTime(names),
		Place:     ResolvePlace(names),
	}
	if r.Place == "" {
		r.Lat, r.Lon = ResolveLatLon(names)
	}
	if !r.Complete() {
		return r, fmt.Errorf("%w: missing %s", ErrUnresolvable, r.missing())
	}
	return r, nil
}

// ResolveBatch retries resolution against a sample batch's columns and
// merges the result into prev.
func ResolveBatch(prev Roles, batch Descriptor) (Roles, error) {
	again, _ := Resolve(batch)
	r := prev.Merge(again)
	if !r.Complete() {
		return r, fmt.Errorf("%w: missing %s", ErrUnresolvable, r.missing())
	}
	return r, nil
}
