package partition

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidSize is returned for size strings ParseSize cannot read.
var ErrInvalidSize = errors.New("invalid size")

var sizePattern = regexp.MustCompile(`^([\d.]+)\s*([KMGTP]?B?)$`)

var sizeMultipliers = map[string]float64{
	"B": 1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
	"P": 1 << 50,
}

// ParseSize parses a size string such as "200MB", "1.5GB" or "500K" into
// bytes. Units are binary and case-insensitive; a bare number is bytes.
func ParseSize(s string) (int64, error) {
	in := strings.ToUpper(strings.TrimSpace(s))
	m := sizePattern.FindStringSubmatch(in)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	unit := m[2]
	if unit == "" {
		unit = "B"
	}
	if len(unit) > 1 {
		unit = unit[:1]
	}
	return int64(num * sizeMultipliers[unit]), nil
}

// ParseBatchRows reads a batch-size flag. A plain integer is a row count;
// a size string is converted to rows at bytesPerRow, never going below
// minRows.
func ParseBatchRows(s string, bytesPerRow, minRows int) (int, error) {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: batch rows must be positive, got %d", ErrInvalidSize, n)
		}
		return n, nil
	}
	b, err := ParseSize(trimmed)
	if err != nil {
		return 0, err
	}
	return RowsForBytes(b, bytesPerRow, minRows), nil
}

// RowsForBytes converts a byte budget into a row count.
func RowsForBytes(bytes int64, bytesPerRow, minRows int) int {
	if bytesPerRow <= 0 {
		bytesPerRow = 1
	}
	rows := int(bytes / int64(bytesPerRow))
	if rows < minRows {
		rows = minRows
	}
	return rows
}
