package partition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"200MB", 209715200},
		{"1.5GB", 1610612736},
		{"500K", 512000},
		{"500kb", 512000},
		{" 2 G ", 2147483648},
		{"1024", 1024},
		{"10B", 10},
		{"1T", 1 << 40},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseSizeInvalid(t *testing.T) {
	for _, in := range []string{"", "MB", "12XB", "1.2.3GB", "-5MB"} {
		_, err := ParseSize(in)
		assert.ErrorIs(t, err, ErrInvalidSize, in)
	}
}

func TestParseBatchRows(t *testing.T) {
	rows, err := ParseBatchRows("250000", 500, 10_000)
	require.NoError(t, err)
	assert.Equal(t, 250000, rows)

	rows, err = ParseBatchRows("200MB", 500, 10_000)
	require.NoError(t, err)
	assert.Equal(t, 209715200/500, rows)

	rows, err = ParseBatchRows("1MB", 500, 10_000)
	require.NoError(t, err)
	assert.Equal(t, 10_000, rows)

	_, err = ParseBatchRows("0", 500, 10_000)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = ParseBatchRows("lots", 500, 10_000)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

// fakeSource reports a resident size proportional to the batch rows.
type fakeSource struct {
	meta      Metadata
	metaErr   error
	failAt    map[int]bool
	probe     *fakeProbe
	perRow    uint64
	base      uint64
	calls     []int
	batchesIn int
}

func (f *fakeSource) Metadata(context.Context) (Metadata, error) { return f.meta, f.metaErr }

func (f *fakeSource) Sample(_ context.Context, rows, max int, onBatch func()) error {
	f.calls = append(f.calls, rows)
	if f.failAt[rows] {
		return errors.New("read failed")
	}
	n := f.batchesIn
	if n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		f.probe.rss = f.base + uint64(rows)*f.perRow
		onBatch()
	}
	return nil
}

type fakeProbe struct{ rss uint64 }

func (p *fakeProbe) ResidentBytes() (uint64, error) { return p.rss, nil }

func testOptions(ceiling uint64) Options {
	return Options{
		CandidateBytes:     []int64{50 << 20, 100 << 20, 200 << 20, 500 << 20},
		Ceiling:            ceiling,
		SampleBatches:      3,
		DefaultBytesPerRow: 500,
	}
}

func TestCandidatesUseBytesPerRow(t *testing.T) {
	s := NewSizer(testOptions(1<<30), &fakeProbe{}, nil)

	got, bpr := s.Candidates(Metadata{Rows: 1000, Bytes: 100_000})
	assert.Equal(t, 100.0, bpr)
	assert.Equal(t, []int{524288, 1048576, 2097152, 5242880}, got)

	got, bpr = s.Candidates(Metadata{})
	assert.Equal(t, 500.0, bpr)
	assert.Equal(t, 104857, got[0])

	// enormous rows collapse to a single candidate of one row
	got, _ = s.Candidates(Metadata{Rows: 1, Bytes: 1 << 40})
	assert.Equal(t, []int{1}, got)
}

func TestRecommendLargestWithinBudget(t *testing.T) {
	probe := &fakeProbe{}
	src := &fakeSource{meta: Metadata{Rows: 1000, Bytes: 100_000}, probe: probe, perRow: 100, batchesIn: 5}
	// 100 bytes per sampled row: 1048576 rows -> ~100MiB, 2097152 -> ~200MiB
	s := NewSizer(testOptions(150<<20), probe, nil)

	rec, err := s.Recommend(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1048576, rec.BatchRows)
	assert.Len(t, rec.Trials, 4)
	assert.Equal(t, []int{524288, 1048576, 2097152, 5242880}, src.calls)
}

func TestRecommendSmallestExceedsStops(t *testing.T) {
	probe := &fakeProbe{}
	src := &fakeSource{meta: Metadata{Rows: 1000, Bytes: 100_000}, probe: probe, perRow: 100, batchesIn: 1}
	s := NewSizer(testOptions(1<<20), probe, nil)

	rec, err := s.Recommend(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 524288, rec.BatchRows)
	assert.Equal(t, []int{524288}, src.calls)
}

func TestRecommendReadFailureCountsAsOverBudget(t *testing.T) {
	probe := &fakeProbe{}
	src := &fakeSource{
		meta:      Metadata{Rows: 1000, Bytes: 100_000},
		probe:     probe,
		perRow:    1,
		batchesIn: 3,
		failAt:    map[int]bool{5242880: true},
	}
	s := NewSizer(testOptions(1<<30), probe, nil)

	rec, err := s.Recommend(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2097152, rec.BatchRows)
	assert.Error(t, rec.Trials[3].Err)
}

func TestRecommendIsIdempotent(t *testing.T) {
	probe := &fakeProbe{}
	src := &fakeSource{meta: Metadata{Rows: 1000, Bytes: 100_000}, probe: probe, perRow: 100, batchesIn: 3}
	s := NewSizer(testOptions(300<<20), probe, nil)

	first, err := s.Recommend(context.Background(), src)
	require.NoError(t, err)
	second, err := s.Recommend(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, first.BatchRows, second.BatchRows)
}

func TestRecommendMetadataError(t *testing.T) {
	src := &fakeSource{metaErr: errors.New("no footer")}
	s := NewSizer(testOptions(1<<30), &fakeProbe{}, nil)
	_, err := s.Recommend(context.Background(), src)
	assert.Error(t, err)
}
