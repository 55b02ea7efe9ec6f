// Package record holds the in-memory batch shape shared by readers and the
// aggregation stages.
package record

// Batch is a bounded chunk of rows read from one file in one read operation.
// Columns lists the column names in file order; each row maps a column name
// to its decoded value (nil for nulls).
type Batch struct {
	Columns []string
	Rows    []map[string]any
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}
