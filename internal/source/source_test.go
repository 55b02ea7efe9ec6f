package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/category"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/record"
	"github.com/sharvaanit/Taxi-data-datapipeline/internal/schema"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		path string
		want record.Period
		ok   bool
	}{
		{"yellow_tripdata_2023-01.parquet", record.Period{Year: 2023, Month: 1}, true},
		{"s3://nyc-tlc/trip data/green_tripdata_2019_12.parquet", record.Period{Year: 2019, Month: 12}, true},
		{"/data/year=2015/month=7/part-0.parquet", record.Period{Year: 2015, Month: 7}, true},
		{"/data/YEAR_2016/MONTH_03/tripdata.parquet", record.Period{Year: 2016, Month: 3}, true},
		{`C:\data\fhv_tripdata_2021-03.parquet`, record.Period{Year: 2021, Month: 3}, true},
		{"/data/2020-05/fhv_tripdata.parquet", record.Period{Year: 2020, Month: 5}, true},
		{"/data/fhv_tripdata_2020-05-extra.parquet", record.Period{Year: 2020, Month: 5}, true},
		{"/data/fhv_tripdata.parquet", record.Period{}, false},
	}
	for _, tt := range tests {
		got, ok := ParsePeriod(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestParseFileRef(t *testing.T) {
	ref := ParseFileRef("s3://bucket/trip data/green_tripdata_2019-12.parquet", category.MustDefault())
	assert.Equal(t, "green", ref.Category)
	assert.Equal(t, "green_tripdata_2019-12.parquet", ref.Name)
	require.NotNil(t, ref.Period)
	assert.Equal(t, record.Period{Year: 2019, Month: 12}, *ref.Period)

	ref = ParseFileRef("/x/mystery_tripdata.parquet", category.MustDefault())
	assert.Equal(t, category.DefaultCategory, ref.Category)
	assert.Nil(t, ref.Period)
}

func TestFileIndexFiltersAndSorts(t *testing.T) {
	idx := NewFileIndex(category.MustDefault(), "tripdata")
	for _, p := range []string{
		"/d/fhv_tripdata_2023-01.parquet",
		"/d/yellow_tripdata_2023-02.parquet",
		"/d/green_tripdata_2023-01.parquet",
		"/d/yellow_tripdata_2023-01.parquet",
		"/d/other_tripdata.parquet",
		"/d/data_dictionary_trip_records_yellow.parquet",
		"/d/yellow_tripdata_2023-01.csv",
	} {
		idx.AddFile(p)
	}
	assert.False(t, idx.AddFile("/d/fhv_tripdata_2023-01.parquet"), "duplicates are ignored")

	idx.Sort()
	var got []string
	for _, f := range idx.Files() {
		got = append(got, f.URI)
	}
	assert.Equal(t, []string{
		"/d/green_tripdata_2023-01.parquet",
		"/d/yellow_tripdata_2023-01.parquet",
		"/d/fhv_tripdata_2023-01.parquet",
		"/d/yellow_tripdata_2023-02.parquet",
		"/d/other_tripdata.parquet",
	}, got)
	assert.Equal(t, 1, idx.Skipped())

	idx.Limit(2)
	assert.Equal(t, 2, idx.Count())
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("s3://nyc-tlc/trip data/")
	require.NoError(t, err)
	assert.Equal(t, Location{Scheme: "s3", Bucket: "nyc-tlc", Key: "trip data/"}, loc)
	assert.True(t, loc.IsRemote())
	assert.Equal(t, "s3://nyc-tlc/trip data/out.parquet", loc.Join("out.parquet").URI())

	loc, err = ParseLocation("gs://bucket")
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/a/b", loc.Join("a/b").URI())

	loc, err = ParseLocation("relative/dir")
	require.NoError(t, err)
	assert.False(t, loc.IsRemote())
	assert.True(t, filepath.IsAbs(loc.Key))

	_, err = ParseLocation("ftp://host/x")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	_, err = ParseLocation("s3:///nokey")
	assert.Error(t, err)
}

func TestBucketURL(t *testing.T) {
	cfg := BucketConfig{S3Endpoint: "http://localhost:9000", S3Region: "us-east-1"}
	got := cfg.BucketURL(Location{Scheme: "s3", Bucket: "trips"})
	assert.Equal(t, "s3://trips?endpoint=http%3A%2F%2Flocalhost%3A9000&region=us-east-1&s3ForcePathStyle=true", got)
	assert.Equal(t, "gs://trips", cfg.BucketURL(Location{Scheme: "gs", Bucket: "trips"}))
}

func writeTrips(t *testing.T, path string, n int) {
	t.Helper()
	s := parquet.NewSchema("trips", parquet.Group{
		"tpep_pickup_datetime": parquet.Timestamp(parquet.Microsecond),
		"PULocationID":         parquet.Int(64),
		"fare_amount":          parquet.Leaf(parquet.DoubleType),
	})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"tpep_pickup_datetime": base.Add(time.Duration(i) * time.Minute).UnixMicro(),
			"PULocationID":         int64(i % 3),
			"fare_amount":          float64(i),
		}
	}
	w := parquet.NewGenericWriter[map[string]any](f, s)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestDiscoverLocal(t *testing.T) {
	dir := t.TempDir()
	writeTrips(t, filepath.Join(dir, "2023", "yellow_tripdata_2023-01.parquet"), 2)
	writeTrips(t, filepath.Join(dir, "fhv_tripdata_2022-12.parquet"), 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme_tripdata.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data_dictionary.parquet"), []byte("x"), 0644))

	refs, err := Discover(context.Background(), dir, DiscoverOptions{Include: "tripdata"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "fhv", refs[0].Category)
	assert.Equal(t, "yellow", refs[1].Category)

	single, err := Discover(context.Background(), refs[1].URI, DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, single, 1)

	none, err := Discover(context.Background(), filepath.Join(dir, "missing"), DiscoverOptions{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHandleIterate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yellow_tripdata_2023-01.parquet")
	writeTrips(t, path, 25)

	opener := NewOpener(BucketConfig{})
	defer opener.Close()
	h, err := OpenParquet(context.Background(), opener, path)
	require.NoError(t, err)
	defer h.Close()

	desc := h.Schema()
	col, ok := desc.Lookup("tpep_pickup_datetime")
	require.True(t, ok)
	assert.Equal(t, schema.KindTimestamp, col.Kind)
	assert.Equal(t, schema.UnitMicros, col.Unit)
	col, _ = desc.Lookup("PULocationID")
	assert.Equal(t, schema.KindInt, col.Kind)

	meta, err := h.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(25), meta.Rows)
	assert.Positive(t, meta.Bytes)

	it := h.Iterate(10)
	defer it.Close()
	var sizes []int
	for {
		b, err := it.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, b.Len())
		assert.Contains(t, b.Rows[0], "PULocationID")
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
}

func TestHandleSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "green_tripdata_2023-01.parquet")
	writeTrips(t, path, 30)

	opener := NewOpener(BucketConfig{})
	h, err := OpenParquet(context.Background(), opener, path)
	require.NoError(t, err)
	defer h.Close()

	calls := 0
	require.NoError(t, h.Sample(context.Background(), 4, 3, func() { calls++ }))
	assert.Equal(t, 3, calls)

	calls = 0
	require.NoError(t, h.Sample(context.Background(), 100, 3, func() { calls++ }))
	assert.Equal(t, 1, calls)
}

func TestOpenParquetRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken_tripdata_2023-01.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not parquet"), 0644))

	_, err := OpenParquet(context.Background(), NewOpener(BucketConfig{}), path)
	assert.Error(t, err)
}

func TestInt96Time(t *testing.T) {
	// 2023-01-01 is Julian day 2459946; 01:00:00 is 3.6e12ns into the day.
	nanos := uint64(time.Hour)
	v := [3]uint32{uint32(nanos), uint32(nanos >> 32), 2459946}
	got := int96Time(v)
	assert.Equal(t, time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC), got)
}
