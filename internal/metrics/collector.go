// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// Metrics collector
// =============================================================================

// Collector aggregates every Prometheus metric emitted by the core.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Ingestion metrics
	ingestRunsTotal     *prometheus.CounterVec
	ingestRunDuration   *prometheus.HistogramVec
	ingestRecordsFetched *prometheus.CounterVec

	// Transform metrics
	transformRunsTotal    *prometheus.CounterVec
	transformRunDuration  *prometheus.HistogramVec
	transformBatchInsert  *prometheus.HistogramVec
	transformRecordsFailed *prometheus.CounterVec

	// Scheduler metrics
	schedulerJobsTotal    *prometheus.CounterVec
	schedulerJobsInFlight *prometheus.GaugeVec

	// Tollbooth metrics (C8, C9)
	tollboothRequestsTotal   *prometheus.CounterVec
	tollboothRequestDuration *prometheus.HistogramVec
	tollboothTokensUsed      *prometheus.CounterVec
	tollboothCost            *prometheus.CounterVec
	budgetDeductions         *prometheus.CounterVec
	budgetReportRollbacks    *prometheus.CounterVec

	// Location/day-scoring metrics (C6, C7)
	visitsCreatedTotal  *prometheus.CounterVec
	poiLookupsTotal     *prometheus.CounterVec
	daySummariesTotal   *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Database metrics
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCollector constructs a Collector registering all metrics under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.ingestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Total number of per-stream ingestion runs",
		},
		[]string{"source", "stream", "status"},
	)

	c.ingestRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"source", "stream"},
	)

	c.ingestRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_fetched_total",
			Help:      "Total number of records fetched from providers",
		},
		[]string{"source", "stream"},
	)

	c.transformRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_runs_total",
			Help:      "Total number of transform runs",
		},
		[]string{"source_table", "target_table", "status"},
	)

	c.transformRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_run_duration_seconds",
			Help:      "Transform run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source_table", "target_table"},
	)

	c.transformBatchInsert = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_batch_insert_duration_seconds",
			Help:      "Per-batch upsert duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target_table"},
	)

	c.transformRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_records_failed_total",
			Help:      "Total number of records that failed per-row fallback insert",
		},
		[]string{"target_table"},
	)

	c.schedulerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_jobs_total",
			Help:      "Total number of scheduler-dispatched jobs",
		},
		[]string{"source", "status"},
	)

	c.schedulerJobsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_jobs_in_flight",
			Help:      "Number of jobs currently running",
		},
		[]string{"source"},
	)

	c.tollboothRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tollbooth_requests_total",
			Help:      "Total number of tollbooth proxy requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.tollboothRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tollbooth_request_duration_seconds",
			Help:      "Tollbooth proxy request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.tollboothTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tollbooth_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.tollboothCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tollbooth_cost_usd_total",
			Help:      "Total tollbooth cost in USD",
		},
		[]string{"provider", "model"},
	)

	c.budgetDeductions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_deductions_total",
			Help:      "Total number of budget ledger deductions",
		},
		[]string{"result"}, // ok, insufficient
	)

	c.budgetReportRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_report_rollbacks_total",
			Help:      "Total number of usage-report rollbacks after an Atlas failure",
		},
		[]string{},
	)

	c.visitsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_visits_created_total",
			Help:      "Total number of location visits written",
		},
		[]string{},
	)

	c.poiLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poi_lookups_total",
			Help:      "Total number of OSM POI lookups",
		},
		[]string{"cache"}, // hit, miss
	)

	c.daySummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_summaries_total",
			Help:      "Total number of day summaries generated",
		},
		[]string{"status"}, // generated, skipped_no_presence
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// HTTP metrics
// =============================================================================

// RecordHTTPRequest records one HTTP request/response cycle.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// Ingestion metrics
// =============================================================================

// RecordIngestRun records the outcome of one stream ingestion run.
func (c *Collector) RecordIngestRun(source, stream, status string, duration time.Duration, recordsFetched int) {
	c.ingestRunsTotal.WithLabelValues(source, stream, status).Inc()
	c.ingestRunDuration.WithLabelValues(source, stream).Observe(duration.Seconds())
	c.ingestRecordsFetched.WithLabelValues(source, stream).Add(float64(recordsFetched))
}

// =============================================================================
// Transform metrics
// =============================================================================

// RecordTransformRun records the outcome of one transform run.
func (c *Collector) RecordTransformRun(sourceTable, targetTable, status string, duration time.Duration) {
	c.transformRunsTotal.WithLabelValues(sourceTable, targetTable, status).Inc()
	c.transformRunDuration.WithLabelValues(sourceTable, targetTable).Observe(duration.Seconds())
}

// RecordBatchInsert records one batch-upsert attempt's duration.
func (c *Collector) RecordBatchInsert(targetTable string, duration time.Duration) {
	c.transformBatchInsert.WithLabelValues(targetTable).Observe(duration.Seconds())
}

// RecordRecordsFailed increments the per-row fallback failure counter.
func (c *Collector) RecordRecordsFailed(targetTable string, n int) {
	c.transformRecordsFailed.WithLabelValues(targetTable).Add(float64(n))
}

// =============================================================================
// Scheduler metrics
// =============================================================================

// RecordSchedulerJob records a job dispatch outcome.
func (c *Collector) RecordSchedulerJob(source, status string) {
	c.schedulerJobsTotal.WithLabelValues(source, status).Inc()
}

// SetJobsInFlight sets the current in-flight job gauge for a source.
func (c *Collector) SetJobsInFlight(source string, n int) {
	c.schedulerJobsInFlight.WithLabelValues(source).Set(float64(n))
}

// =============================================================================
// Tollbooth metrics (C8, C9)
// =============================================================================

// RecordTollboothRequest records one proxied LLM request.
func (c *Collector) RecordTollboothRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int, cost float64) {
	c.tollboothRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.tollboothRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.tollboothTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.tollboothTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	c.tollboothCost.WithLabelValues(provider, model).Add(cost)
}

// RecordBudgetDeduction records a budget deduction attempt's result.
func (c *Collector) RecordBudgetDeduction(result string) {
	c.budgetDeductions.WithLabelValues(result).Inc()
}

// RecordBudgetReportRollback records one usage-report rollback event.
func (c *Collector) RecordBudgetReportRollback() {
	c.budgetReportRollbacks.WithLabelValues().Inc()
}

// =============================================================================
// Location/day-scoring metrics (C6, C7)
// =============================================================================

// RecordVisitCreated increments the location-visit creation counter.
func (c *Collector) RecordVisitCreated() {
	c.visitsCreatedTotal.WithLabelValues().Inc()
}

// RecordPOILookup records an OSM POI lookup, cache hit or miss.
func (c *Collector) RecordPOILookup(cacheResult string) {
	c.poiLookupsTotal.WithLabelValues(cacheResult).Inc()
}

// RecordDaySummary records a day-summary generation outcome.
func (c *Collector) RecordDaySummary(status string) {
	c.daySummariesTotal.WithLabelValues(status).Inc()
}

// =============================================================================
// Cache metrics
// =============================================================================

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// Database metrics
// =============================================================================

// RecordDBConnections records the current connection pool occupancy.
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery records one database query's duration.
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// Helpers
// =============================================================================

// statusCode buckets an HTTP status code into its class string.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
