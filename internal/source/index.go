package source

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/category"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/record"
)

// FileRef is one discovered input file. Its attributes are inferred once at
// discovery and never change.
type FileRef struct {
	URI      string
	Name     string
	Category string
	Period   *record.Period // nil when the name carries no period
}

// Period patterns, tried in order:
//
//	year=2023/month=01      (hive-style partitions)
//	yellow_tripdata_2023-01.parquet
//	anything with 2023-01 or 2023_01 in it
var periodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)year[=_]?(\d{4})[/_]month[=_]?(\d{1,2})`),
	regexp.MustCompile(`(?i)(\d{4})[-_](\d{1,2})(?:\.parquet|/|$)`),
	regexp.MustCompile(`(\d{4})[-_](\d{1,2})`),
}

// ParsePeriod extracts the (year, month) a path refers to.
func ParsePeriod(p string) (record.Period, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, re := range periodPatterns {
		m := re.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		year, err1 := strconv.Atoi(m[1])
		month, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		return record.Period{Year: year, Month: month}, true
	}
	return record.Period{}, false
}

// ParseFileRef builds a FileRef from a URI or path.
func ParseFileRef(uri string, router *category.Router) FileRef {
	ref := FileRef{
		URI:      uri,
		Name:     path.Base(strings.ReplaceAll(uri, "\\", "/")),
		Category: router.Route(uri),
	}
	if p, ok := ParsePeriod(uri); ok {
		ref.Period = &p
	}
	return ref
}

// FileIndex collects discovered files and orders them for scheduling.
type FileIndex struct {
	router  *category.Router
	include string
	files   []FileRef
	seen    map[string]bool
	skipped int
}

// NewFileIndex creates an index. Files whose lower-cased path does not
// contain include are skipped; an empty include accepts every file.
func NewFileIndex(router *category.Router, include string) *FileIndex {
	return &FileIndex{
		router:  router,
		include: strings.ToLower(include),
		seen:    make(map[string]bool),
	}
}

// AddFile indexes uri if it is a Parquet file that passes the include
// filter. It reports whether the file was added.
func (idx *FileIndex) AddFile(uri string) bool {
	if !IsParquet(uri) || idx.seen[uri] {
		return false
	}
	if idx.include != "" && !strings.Contains(strings.ToLower(uri), idx.include) {
		idx.skipped++
		return false
	}
	idx.seen[uri] = true
	idx.files = append(idx.files, ParseFileRef(uri, idx.router))
	return true
}

// Sort orders files by period ascending, then category rank, then URI.
// Files without a period come after every dated file.
func (idx *FileIndex) Sort() {
	SortForSchedule(idx.files, idx.router)
}

// SortForSchedule sorts refs in place for dispatch.
func SortForSchedule(refs []FileRef, router *category.Router) {
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		switch {
		case a.Period != nil && b.Period == nil:
			return true
		case a.Period == nil && b.Period != nil:
			return false
		case a.Period != nil && *a.Period != *b.Period:
			return a.Period.Before(*b.Period)
		}
		ra, rb := router.Rank(a.Category), router.Rank(b.Category)
		if ra != rb {
			return ra < rb
		}
		return a.URI < b.URI
	})
}

// Files returns the indexed files in their current order.
func (idx *FileIndex) Files() []FileRef {
	return idx.files
}

// Limit truncates the index to its first n files. n <= 0 keeps all.
func (idx *FileIndex) Limit(n int) {
	if n > 0 && n < len(idx.files) {
		idx.files = idx.files[:n]
	}
}

// Count returns the number of indexed files.
func (idx *FileIndex) Count() int { return len(idx.files) }

// Skipped returns how many Parquet files the include filter rejected.
func (idx *FileIndex) Skipped() int { return idx.skipped }
