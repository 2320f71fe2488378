// Package metrics exposes Prometheus collectors for the loader.
//
// Every Recorder method is safe to call on a nil *Recorder, so components can be
// built without metrics in tests or tools.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/ThiagoRGoveia/market-data-loader/internal/scheduler"
)

const namespace = "market_data_loader"

type Recorder struct {
	registry *prometheus.Registry

	rows           *prometheus.CounterVec
	files          *prometheus.CounterVec
	batches        *prometheus.CounterVec
	records        *prometheus.CounterVec
	periods        *prometheus.CounterVec
	insertDuration prometheus.Histogram
}

// New builds a Recorder on its own registry, with the Go runtime collectors
// attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "CSV rows seen, partitioned by folder and outcome (read, filtered, invalid).",
		}, []string{"folder", "outcome"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "CSV files handled, partitioned by folder and outcome (processed, failed).",
		}, []string{"folder", "outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Insert batches, partitioned by status (committed, failed).",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records submitted to the database, partitioned by status (success, failed).",
		}, []string{"status"}),
		periods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periods_total",
			Help:      "Monthly periods, partitioned by status (done, skipped).",
		}, []string{"status"}),
		insertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "insert_duration_seconds",
			Help:      "Wall-clock duration of one period's database insert.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	r.registry.MustRegister(
		r.rows, r.files, r.batches, r.records, r.periods, r.insertDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveFile(stats models.FileStats) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(stats.Folder, "read").Add(float64(stats.RowsRead))
	r.rows.WithLabelValues(stats.Folder, "filtered").Add(float64(stats.RowsSkipped))
	r.rows.WithLabelValues(stats.Folder, "invalid").Add(float64(stats.RowsInvalid))

	outcome := "processed"
	if stats.StreamError != "" {
		outcome = "failed"
	}
	r.files.WithLabelValues(stats.Folder, outcome).Inc()
}

func (r *Recorder) ObserveInsert(stats *models.InsertStats) {
	if r == nil || stats == nil {
		return
	}
	r.batches.WithLabelValues("committed").Add(float64(stats.Batches - stats.FailedBatches))
	r.batches.WithLabelValues("failed").Add(float64(stats.FailedBatches))
	r.records.WithLabelValues("success").Add(float64(stats.SuccessfulRecords))
	r.records.WithLabelValues("failed").Add(float64(stats.FailedRecords))
	r.insertDuration.Observe(stats.Duration.Seconds())
}

func (r *Recorder) ObservePeriod(status models.PeriodStatus) {
	if r == nil {
		return
	}
	r.periods.WithLabelValues(string(status)).Inc()
}

// WatchScheduler exports the scheduler's running and queued counts as gauges
// that are read at scrape time.
func (r *Recorder) WatchScheduler(s *scheduler.Scheduler) {
	if r == nil || s == nil {
		return
	}
	r.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "running_tasks",
			Help:      "Tasks currently executing.",
		}, func() float64 { return float64(s.Stats().Running) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queued_tasks",
			Help:      "Tasks waiting for a free slot.",
		}, func() float64 { return float64(s.Stats().Queued) }),
	)
}
