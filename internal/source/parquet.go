package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/deprecated"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/partition"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/record"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/schema"
)

// julianUnixEpoch is the Julian day number of 1970-01-01.
const julianUnixEpoch = 2440588

// Handle is an opened Parquet input file.
type Handle struct {
	uri  string
	rc   ReaderAtCloser
	size int64
	file *parquet.File
	desc schema.Descriptor
}

// OpenParquet opens uri and reads its footer.
func OpenParquet(ctx context.Context, opener *Opener, uri string) (*Handle, error) {
	rc, size, err := opener.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(rc, size)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("open parquet %s: %w", uri, err)
	}
	return &Handle{uri: uri, rc: rc, size: size, file: pf, desc: describe(pf.Schema())}, nil
}

// URI returns the file's locator.
func (h *Handle) URI() string { return h.uri }

// Schema returns the file's top-level column descriptor.
func (h *Handle) Schema() schema.Descriptor { return h.desc }

// NumRows returns the row count recorded in the footer.
func (h *Handle) NumRows() int64 { return h.file.NumRows() }

// Metadata implements partition.Source. Bytes is the object size.
func (h *Handle) Metadata(context.Context) (partition.Metadata, error) {
	return partition.Metadata{Rows: h.file.NumRows(), Bytes: h.size}, nil
}

// Sample implements partition.Source by reading up to maxBatches batches
// through a fresh reader.
func (h *Handle) Sample(ctx context.Context, batchRows, maxBatches int, onBatch func()) error {
	it := h.Iterate(batchRows)
	defer it.Close()
	for i := 0; i < maxBatches; i++ {
		if _, err := it.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		onBatch()
	}
	return nil
}

// Iterate returns a fresh batch iterator reading batchRows rows at a time.
func (h *Handle) Iterate(batchRows int) *BatchIterator {
	if batchRows < 1 {
		batchRows = 1
	}
	int96 := make(map[string]bool)
	for _, c := range h.desc.Columns {
		if c.Kind == schema.KindTimestamp && c.Unit == schema.UnitNone {
			int96[c.Name] = true
		}
	}
	buf := make([]map[string]any, batchRows)
	for i := range buf {
		buf[i] = make(map[string]any, len(h.desc.Columns))
	}
	return &BatchIterator{
		reader:  parquet.NewGenericReader[map[string]any](h.file, h.file.Schema()),
		buf:     buf,
		columns: h.desc.Names(),
		int96:   int96,
	}
}

// Close releases the underlying file.
func (h *Handle) Close() error {
	return h.rc.Close()
}

// BatchIterator streams a file in fixed-size batches. The rows of a
// returned batch are reused by the next call to Next.
type BatchIterator struct {
	reader  *parquet.GenericReader[map[string]any]
	buf     []map[string]any
	columns []string
	int96   map[string]bool
	done    bool
}

// Next returns the next batch, or io.EOF when the file is exhausted.
func (it *BatchIterator) Next(ctx context.Context) (*record.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.done {
		return nil, io.EOF
	}

	for _, m := range it.buf {
		clear(m)
	}
	n, err := it.reader.Read(it.buf)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read batch: %w", err)
		}
		it.done = true
	}
	if n == 0 {
		it.done = true
		return nil, io.EOF
	}

	rows := it.buf[:n]
	if len(it.int96) > 0 {
		for _, row := range rows {
			for col := range it.int96 {
				if v, ok := row[col].(deprecated.Int96); ok {
					row[col] = int96Time(v)
				}
			}
		}
	}
	return &record.Batch{Columns: it.columns, Rows: rows}, nil
}

// Close releases the reader.
func (it *BatchIterator) Close() error {
	return it.reader.Close()
}

// int96Time decodes a legacy INT96 timestamp: nanoseconds of the day in the
// low 64 bits and the Julian day in the high 32 bits.
func int96Time(v deprecated.Int96) time.Time {
	nanos := int64(uint64(v[1])<<32 | uint64(v[0]))
	days := int64(v[2]) - julianUnixEpoch
	return time.Unix(days*86400, nanos).UTC()
}

// describe converts the top-level leaf columns of a Parquet schema.
func describe(s *parquet.Schema) schema.Descriptor {
	var cols []schema.Column
	for _, f := range s.Fields() {
		if !f.Leaf() {
			continue
		}
		cols = append(cols, column(f.Name(), f.Type()))
	}
	return schema.Descriptor{Columns: cols}
}

func column(name string, t parquet.Type) schema.Column {
	col := schema.Column{Name: name}
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.Timestamp != nil:
			col.Kind = schema.KindTimestamp
			switch {
			case lt.Timestamp.Unit.Millis != nil:
				col.Unit = schema.UnitMillis
			case lt.Timestamp.Unit.Micros != nil:
				col.Unit = schema.UnitMicros
			case lt.Timestamp.Unit.Nanos != nil:
				col.Unit = schema.UnitNanos
			}
			return col
		case lt.Date != nil:
			col.Kind = schema.KindDate
			return col
		case lt.UTF8 != nil:
			col.Kind = schema.KindString
			return col
		}
	}

	switch t.Kind() {
	case parquet.Boolean:
		col.Kind = schema.KindBool
	case parquet.Int32, parquet.Int64:
		col.Kind = schema.KindInt
	case parquet.Int96:
		col.Kind = schema.KindTimestamp
	case parquet.Float, parquet.Double:
		col.Kind = schema.KindFloat
	case parquet.ByteArray, parquet.FixedLenByteArray:
		col.Kind = schema.KindBytes
	}
	return col
}
