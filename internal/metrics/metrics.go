// Package metrics provides Prometheus metrics for the pivot pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// File outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds all Prometheus metrics for a run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// File metrics
	FilesTotal   *prometheus.CounterVec
	FileDuration *prometheus.HistogramVec

	// Row metrics
	RowsRead        *prometheus.CounterVec
	RowsEmitted     *prometheus.CounterVec
	OutOfPeriodRows *prometheus.CounterVec
	UnparseableRows *prometheus.CounterVec
	PrunedRows      *prometheus.CounterVec

	// Pipeline metrics
	BatchRows      prometheus.Histogram
	WorkersBusy    prometheus.Gauge
	MergeDuration  prometheus.Histogram
	RecommendedRow prometheus.Gauge
}

var defaultMetrics *Metrics

// Init creates the metrics on a fresh registry and makes them the global
// instance.
func Init(namespace string) *Metrics {
	m := New(namespace)
	defaultMetrics = m
	return m
}

// New creates metrics registered on their own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "taxipivot"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FilesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Input files processed, by outcome",
			},
			[]string{"status"},
		),
		FileDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "file_duration_seconds",
				Help:      "Time to aggregate, pivot and store one input file",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
			},
			[]string{"category"},
		),
		RowsRead: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_read_total",
				Help:      "Trip records with a parseable event time",
			},
			[]string{"category"},
		),
		RowsEmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_emitted_total",
				Help:      "Wide-table rows written to intermediate artifacts",
			},
			[]string{"category"},
		),
		OutOfPeriodRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "out_of_period_rows_total",
				Help:      "Trip records whose event falls outside the file's period",
			},
			[]string{"category"},
		),
		UnparseableRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unparseable_rows_total",
				Help:      "Trip records dropped because the event time could not be parsed",
			},
			[]string{"category"},
		),
		PrunedRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pruned_rows_total",
				Help:      "Wide-table rows dropped for low ride counts",
			},
			[]string{"category"},
		),
		BatchRows: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_rows",
				Help:      "Rows per streamed batch",
				Buckets:   prometheus.ExponentialBuckets(1000, 2, 12), // 1k to ~2M
			},
		),
		WorkersBusy: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers_busy",
				Help:      "Workers currently processing a file",
			},
		),
		MergeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "merge_duration_seconds",
				Help:      "Time to merge intermediate artifacts into the final table",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		RecommendedRow: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "recommended_batch_rows",
				Help:      "Batch size chosen by the partition sizer",
			},
		),
	}
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics and a health check.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer serves Prometheus scraping on address until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// FileStats is the per-file accounting recorded by ObserveFile.
type FileStats struct {
	Category    string
	RowsRead    int64
	OutOfPeriod int64
	Unparseable int64
	Emitted     int
	Pruned      int
	Duration    time.Duration
}

// ObserveFile records a successfully processed file.
func (m *Metrics) ObserveFile(s FileStats) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(StatusOK).Inc()
	m.FileDuration.WithLabelValues(s.Category).Observe(s.Duration.Seconds())
	m.RowsRead.WithLabelValues(s.Category).Add(float64(s.RowsRead))
	m.OutOfPeriodRows.WithLabelValues(s.Category).Add(float64(s.OutOfPeriod))
	m.UnparseableRows.WithLabelValues(s.Category).Add(float64(s.Unparseable))
	m.RowsEmitted.WithLabelValues(s.Category).Add(float64(s.Emitted))
	m.PrunedRows.WithLabelValues(s.Category).Add(float64(s.Pruned))
}

// IncFilesFailed increments the failed files counter.
func (m *Metrics) IncFilesFailed() {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(StatusFailed).Inc()
}

// ObserveBatch records the size of one streamed batch.
func (m *Metrics) ObserveBatch(rows int) {
	if m == nil {
		return
	}
	m.BatchRows.Observe(float64(rows))
}

// WorkerStarted marks a worker busy.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.WorkersBusy.Inc()
}

// WorkerDone marks a worker idle.
func (m *Metrics) WorkerDone() {
	if m == nil {
		return
	}
	m.WorkersBusy.Dec()
}

// ObserveMerge records the merge time.
func (m *Metrics) ObserveMerge(d time.Duration) {
	if m == nil {
		return
	}
	m.MergeDuration.Observe(d.Seconds())
}

// SetRecommendedBatchRows records the sizer's choice.
func (m *Metrics) SetRecommendedBatchRows(rows int) {
	if m == nil {
		return
	}
	m.RecommendedRow.Set(float64(rows))
}
