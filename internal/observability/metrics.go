// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Persistence metrics
	RowsWritten       *prometheus.CounterVec
	IdenticalRows     *prometheus.CounterVec
	Collisions        *prometheus.CounterVec
	RowsDeleted       *prometheus.CounterVec
	BulkFallbacks     *prometheus.CounterVec
	DataSourcesCreate prometheus.Counter
	Reconnects        prometheus.Counter

	// Import metrics
	ImportRunsTotal    *prometheus.CounterVec
	ImportDuration     *prometheus.HistogramVec
	InvalidRecords     *prometheus.CounterVec
	RebuildRunsTotal   *prometheus.CounterVec
	LastSuccessRebuild prometheus.Gauge

	// Lookup metrics
	CacheLoads   *prometheus.CounterVec
	CacheEntries *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers the metrics with reg. Tests pass a fresh registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "chain_addresses"
	}
	f := promauto.With(reg)

	return &Metrics{
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressdb",
			Name:      "rows_written_total",
			Help:      "Total number of rows written by table",
		}, []string{"table"}),
		IdenticalRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressdb",
			Name:      "identical_rows_total",
			Help:      "Rows skipped because an identical row was already stored",
		}, []string{"table"}),
		Collisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressdb",
			Name:      "collisions_total",
			Help:      "Rows skipped because a different row holds the same key",
		}, []string{"table"}),
		RowsDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressdb",
			Name:      "rows_deleted_total",
			Help:      "Rows deleted while replacing a data source",
		}, []string{"table"}),
		BulkFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressdb",
			Name:      "bulk_fallbacks_total",
			Help:      "Bulk inserts that fell back to one row at a time",
		}, []string{"table"}),
		DataSourcesCreate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressdb",
			Name:      "data_sources_created_total",
			Help:      "Total number of data sources created",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressdb",
			Name:      "connections_opened_total",
			Help:      "Total number of storage connections opened",
		}),

		ImportRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "importer",
			Name:      "runs_total",
			Help:      "Total number of importer runs by source and status",
		}, []string{"source", "status"}),
		ImportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "importer",
			Name:      "duration_seconds",
			Help:      "Importer run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"source"}),
		InvalidRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "importer",
			Name:      "invalid_records_total",
			Help:      "Records skipped by validation, by source",
		}, []string{"source"}),
		RebuildRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "importer",
			Name:      "rebuild_runs_total",
			Help:      "Total number of full rebuilds by status",
		}, []string{"status"}),
		LastSuccessRebuild: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_rebuild_timestamp",
			Help:      "Unix timestamp of last successful rebuild",
		}),

		CacheLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "cache_loads_total",
			Help:      "Lookup cache load attempts by cache and status",
		}, []string{"cache", "status"}),
		CacheEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "cache_entries",
			Help:      "Number of coalesced entries held by each cache",
		}, []string{"cache"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database operation errors",
		}, []string{"operation"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordInsert records the outcome of inserting a batch into table.
func RecordInsert(table string, written, identical, collisions int, fellBack bool) {
	DefaultMetrics.RowsWritten.WithLabelValues(table).Add(float64(written))
	DefaultMetrics.IdenticalRows.WithLabelValues(table).Add(float64(identical))
	DefaultMetrics.Collisions.WithLabelValues(table).Add(float64(collisions))
	if fellBack {
		DefaultMetrics.BulkFallbacks.WithLabelValues(table).Inc()
	}
}

// RecordDelete records rows removed while replacing a source.
func RecordDelete(table string, n int64) {
	DefaultMetrics.RowsDeleted.WithLabelValues(table).Add(float64(n))
}

// RecordDataSourceCreated increments the data sources counter.
func RecordDataSourceCreated() {
	DefaultMetrics.DataSourcesCreate.Inc()
}

// RecordConnect increments the connections opened counter.
func RecordConnect() {
	DefaultMetrics.Reconnects.Inc()
}

// RecordImportRun records an importer run.
func RecordImportRun(source, status string, durationSeconds float64) {
	DefaultMetrics.ImportRunsTotal.WithLabelValues(source, status).Inc()
	DefaultMetrics.ImportDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordInvalidRecord counts a record skipped by validation.
func RecordInvalidRecord(source string) {
	DefaultMetrics.InvalidRecords.WithLabelValues(source).Inc()
}

// RecordRebuild records a full rebuild.
func RecordRebuild(status string, finishedUnix int64) {
	DefaultMetrics.RebuildRunsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		DefaultMetrics.LastSuccessRebuild.Set(float64(finishedUnix))
	}
}

// RecordCacheLoad records a lookup cache load attempt.
func RecordCacheLoad(cache string, entries int, err error) {
	if err != nil {
		DefaultMetrics.CacheLoads.WithLabelValues(cache, "error").Inc()
		return
	}
	DefaultMetrics.CacheLoads.WithLabelValues(cache, "success").Inc()
	DefaultMetrics.CacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// RecordDBQuery records database operation metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(route string, code int, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	DefaultMetrics.HTTPLatency.WithLabelValues(route).Observe(seconds)
}
