package tables

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/aggregate"
)

func hours(pairs ...int64) [Hours]int64 {
	var h [Hours]int64
	for i := 0; i+1 < len(pairs); i += 2 {
		h[pairs[i]] = pairs[i+1]
	}
	return h
}

func TestPivotZeroFillsHours(t *testing.T) {
	counts := aggregate.Counts{
		{Date: "2023-01-05", Category: "yellow", Place: "1", Hour: 0}: 10,
		{Date: "2023-01-05", Category: "yellow", Place: "1", Hour: 1}: 20,
		{Date: "2023-01-05", Category: "yellow", Place: "2", Hour: 0}: 5,
	}

	rows := Pivot(counts)
	require.Len(t, rows, 2)
	assert.Equal(t, WideRow{Category: "yellow", Date: "2023-01-05", Place: "1", Hours: hours(0, 10, 1, 20)}, rows[0])
	assert.Equal(t, WideRow{Category: "yellow", Date: "2023-01-05", Place: "2", Hours: hours(0, 5)}, rows[1])
}

func TestPivotPreservesTotals(t *testing.T) {
	counts := aggregate.Counts{}
	for h := 0; h < Hours; h++ {
		counts[aggregate.Key{Date: "2023-02-01", Category: "green", Place: "a", Hour: h}] = int64(h + 1)
		counts[aggregate.Key{Date: "2023-02-02", Category: "green", Place: "a", Hour: h}] = 2
	}

	rows := Pivot(counts)
	var total int64
	for _, r := range rows {
		total += r.Total()
	}
	assert.Equal(t, counts.Total(), total)
	assert.Equal(t, int64(300), rows[0].Total())
	assert.Equal(t, int64(48), rows[1].Total())
}

func TestPivotEmpty(t *testing.T) {
	rows := Pivot(aggregate.Counts{})
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestPruneBoundary(t *testing.T) {
	rows := []WideRow{
		{Category: "yellow", Date: "d", Place: "45", Hours: hours(3, 45)},
		{Category: "yellow", Date: "d", Place: "50", Hours: hours(3, 25, 4, 25)},
		{Category: "yellow", Date: "d", Place: "51", Hours: hours(0, 51)},
	}

	kept, stats := Prune(rows, DefaultMinRides)
	require.Len(t, kept, 2)
	assert.Equal(t, "50", kept[0].Place)
	assert.Equal(t, "51", kept[1].Place)
	assert.Equal(t, PruneStats{Kept: 2, Dropped: 1}, stats)
	assert.Len(t, rows, 3)
}

func TestPruneIsIdempotent(t *testing.T) {
	rows := []WideRow{
		{Place: "a", Hours: hours(0, 10)},
		{Place: "b", Hours: hours(0, 60)},
		{Place: "c", Hours: hours(0, 49, 1, 1)},
	}
	once, _ := Prune(rows, 50)
	twice, stats := Prune(once, 50)
	assert.Equal(t, once, twice)
	assert.Equal(t, 0, stats.Dropped)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rows := []WideRow{
		{Category: "fhv", Date: "2021-03-01", Place: "40.7_-74.0", Hours: hours(0, 1, 23, 99)},
		{Category: "yellow", Date: "2021-03-02", Place: "132", Hours: hours(12, 500)},
	}
	data, err := EncodeParquet(rows, WriterConfig{})
	require.NoError(t, err)

	got, err := DecodeParquet(data)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestEncodeEmptyHasHeader(t *testing.T) {
	data, err := EncodeParquet(nil, WriterConfig{CompressionLevel: "fastest"})
	require.NoError(t, err)

	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(0), pf.NumRows())

	var names []string
	for _, f := range pf.Schema().Fields() {
		names = append(names, f.Name())
	}
	assert.Equal(t, Header(), names)
}

func TestWriterConfigRejectsUnknownLevel(t *testing.T) {
	_, err := EncodeParquet(nil, WriterConfig{CompressionLevel: "ludicrous"})
	assert.Error(t, err)
}

func TestReadParquetZeroFillsMissingHours(t *testing.T) {
	schema := parquet.NewSchema("drift", parquet.Group{
		ColumnCategory: parquet.String(),
		ColumnDate:     parquet.String(),
		ColumnPlace:    parquet.Int(64),
		"hour_0":       parquet.Int(64),
		"hour_5":       parquet.Int(32),
	})
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[map[string]any](&buf, schema)
	_, err := w.Write([]map[string]any{
		{ColumnCategory: "green", ColumnDate: "2019-12-01", ColumnPlace: int64(7), "hour_0": int64(3), "hour_5": int32(4)},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rows, err := DecodeParquet(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, WideRow{Category: "green", Date: "2019-12-01", Place: "7", Hours: hours(0, 3, 5, 4)}, rows[0])
}

func TestMergeOrderIndependent(t *testing.T) {
	a, err := EncodeParquet([]WideRow{
		{Category: "yellow", Date: "d1", Place: "1", Hours: hours(0, 10)},
		{Category: "yellow", Date: "d1", Place: "2", Hours: hours(5, 1)},
	}, WriterConfig{})
	require.NoError(t, err)
	b, err := EncodeParquet([]WideRow{
		{Category: "yellow", Date: "d1", Place: "1", Hours: hours(0, 5, 1, 7)},
		{Category: "green", Date: "d1", Place: "1", Hours: hours(2, 2)},
	}, WriterConfig{})
	require.NoError(t, err)
	m := NewMerger(memArtifacts{"A": a, "B": b}, 1, nil)

	ab, _, err := m.Merge(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	ba, _, err := m.Merge(context.Background(), []string{"B", "A"})
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	require.Len(t, ab, 3)
	assert.Equal(t, WideRow{Category: "yellow", Date: "d1", Place: "1", Hours: hours(0, 15, 1, 7)}, ab[1])
}

type memArtifacts map[string][]byte

func (m memArtifacts) ReadAll(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestMergerMergesArtifacts(t *testing.T) {
	a, err := EncodeParquet([]WideRow{{Category: "yellow", Date: "d", Place: "1", Hours: hours(0, 30)}}, WriterConfig{})
	require.NoError(t, err)
	b, err := EncodeParquet([]WideRow{{Category: "yellow", Date: "d", Place: "1", Hours: hours(0, 20, 3, 1)}}, WriterConfig{})
	require.NoError(t, err)
	empty, err := EncodeParquet(nil, WriterConfig{})
	require.NoError(t, err)
	src := memArtifacts{"a": a, "b": b, "empty": empty}

	m := NewMerger(src, 2, nil)
	forward, stats, err := m.Merge(context.Background(), []string{"a", "b", "empty"})
	require.NoError(t, err)
	backward, _, err := m.Merge(context.Background(), []string{"empty", "b", "a"})
	require.NoError(t, err)

	assert.Equal(t, forward, backward)
	require.Len(t, forward, 1)
	assert.Equal(t, int64(51), forward[0].Total())
	assert.Equal(t, MergeStats{Artifacts: 3, InputRows: 2, Rows: 1}, stats)
}

func TestMergerNoArtifacts(t *testing.T) {
	rows, stats, err := NewMerger(memArtifacts{}, 4, nil).Merge(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, stats.Rows)
}

func TestMergerReadError(t *testing.T) {
	_, _, err := NewMerger(memArtifacts{}, 1, nil).Merge(context.Background(), []string{"missing"})
	assert.Error(t, err)
}

func TestChecksum(t *testing.T) {
	sum := Checksum([]byte("wide"))
	assert.True(t, VerifyChecksum([]byte("wide"), sum))
	assert.False(t, VerifyChecksum([]byte("narrow"), sum))
	assert.False(t, VerifyChecksum([]byte("wide"), sum[len(checksumPrefix):]))
}
