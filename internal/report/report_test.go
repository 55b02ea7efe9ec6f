package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Data {
	return New("run-1", Totals{
		InputRows:       1000,
		OutputRows:      40,
		OutOfPeriodRows: 7,
		LowCountDropped: 5,
		UnparseableRows: 2,
		FilesProcessed:  3,
		FilesFailed:     1,
	}, 3*1024*1024+512*1024, 90*time.Second)
}

func TestNewDerivesFields(t *testing.T) {
	d := sample()
	assert.Equal(t, int64(12), d.BadRowsIgnored)
	assert.Equal(t, 3.5, d.MemoryUseMB)
	assert.Equal(t, 90.0, d.RunTimeSeconds)
	assert.Equal(t, 1.5, d.RunTimeMinutes)
}

func TestRenderJSON(t *testing.T) {
	b, err := Render("report.json", sample())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, float64(1000), got["input_row_count"])
	assert.Equal(t, float64(12), got["bad_rows_ignored"])
	assert.Equal(t, float64(7), got["month_mismatch_rows"])
	assert.Contains(t, string(b), "\n  \"run_id\"")
}

func TestRenderTeX(t *testing.T) {
	b, err := Render("out/REPORT.TEX", sample())
	require.NoError(t, err)
	tex := string(b)
	assert.True(t, strings.HasPrefix(tex, `\documentclass{article}`))
	assert.Contains(t, tex, `\item Input row count: 1000`)
	assert.Contains(t, tex, `\item Bad rows ignored: 12`)
	assert.Contains(t, tex, `\item Memory use (MB): 3.50`)
	assert.True(t, strings.HasSuffix(tex, `\end{document}`))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "input rows=1,000 output rows=40 bad rows=12 memory=3.5 MiB time=90.00s", sample().Summary())
}

func TestPeakRSS(t *testing.T) {
	rss, err := PeakRSS()
	require.NoError(t, err)
	assert.Positive(t, rss)
}
