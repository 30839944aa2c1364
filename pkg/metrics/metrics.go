package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric the dashboard, ingester and database layer export.
type Collector struct {
	// api_*
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// dataset_*
	DatasetRows         prometheus.Gauge
	DatasetLoadDuration prometheus.Histogram
	DatasetLoadErrors   *prometheus.CounterVec

	// dashboard_*
	AggregationDuration *prometheus.HistogramVec
	InteractionEvents   *prometheus.CounterVec
	RenderDuration      *prometheus.HistogramVec

	// ingestion_*
	IngestionRecordsTotal prometheus.Counter
	IngestionErrorsTotal  *prometheus.CounterVec
	IngestionBatchSize    prometheus.Histogram

	// db_*
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// Pool states reported by UpdateDBConnectionPool.
const (
	PoolInUse = "in_use"
	PoolIdle  = "idle"
	PoolTotal = "total"
)

var (
	fastBuckets = prometheus.ExponentialBuckets(0.001, 2.5, 10) // 1ms .. ~3.8s
	loadBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}
)

// NewCollector registers with the default Prometheus registry, which is what
// promhttp.Handler serves.
func NewCollector(namespace string) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry registers with reg. Tests pass a fresh
// prometheus.NewRegistry() so collectors can be built more than once.
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer) *Collector {
	f := factory{auto: promauto.With(reg), namespace: namespace}

	return &Collector{
		APIRequestsTotal:   f.counterVec("api", "requests_total", "API requests by route template, method and status", "endpoint", "method", "status"),
		APIRequestDuration: f.histogramVec("api", "request_duration_seconds", "API request duration by route template", fastBuckets, "endpoint"),
		APIErrorsTotal:     f.counterVec("api", "errors_total", "API error responses by error class", "error_type", "endpoint"),

		DatasetRows:         f.gauge("dataset", "rows", "Number of crash records in the loaded base table"),
		DatasetLoadDuration: f.histogram("dataset", "load_duration_seconds", "Duration of the startup dataset load", loadBuckets),
		DatasetLoadErrors:   f.counterVec("dataset", "load_errors_total", "Dataset load failures by source", "source"),

		AggregationDuration: f.histogramVec("", "aggregation_duration_seconds", "Duration of one startup view computation", fastBuckets, "view"),
		InteractionEvents:   f.counterVec("", "interaction_events_total", "Dropdown selection events by handler and outcome", "handler", "outcome"),
		RenderDuration:      f.histogramVec("", "render_duration_seconds", "SVG chart rendering duration by chart kind", fastBuckets, "kind"),

		IngestionRecordsTotal: f.counter("ingestion", "records_processed_total", "Crash records stored by the ingester"),
		IngestionErrorsTotal:  f.counterVec("ingestion", "errors_total", "Rows or files the ingester skipped, by reason", "error_type"),
		IngestionBatchSize:    f.histogram("ingestion", "batch_size", "Rows per insert transaction", prometheus.ExponentialBuckets(10, 4, 7)),

		DBQueryDuration:  f.histogramVec("db", "query_duration_seconds", "Database query duration by query type", fastBuckets, "query_type"),
		DBConnectionPool: f.gaugeVec("db", "connection_pool", "Database connection pool statistics", "state"),
		DBErrorsTotal:    f.counterVec("db", "errors_total", "Database errors by type", "error_type"),
	}
}

type factory struct {
	auto      promauto.Factory
	namespace string
}

func (f factory) counter(subsystem, name, help string) prometheus.Counter {
	return f.auto.NewCounter(prometheus.CounterOpts{Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help})
}

func (f factory) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return f.auto.NewCounterVec(prometheus.CounterOpts{Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

func (f factory) gauge(subsystem, name, help string) prometheus.Gauge {
	return f.auto.NewGauge(prometheus.GaugeOpts{Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help})
}

func (f factory) gaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return f.auto.NewGaugeVec(prometheus.GaugeOpts{Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

func (f factory) histogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	return f.auto.NewHistogram(prometheus.HistogramOpts{Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets})
}

func (f factory) histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.auto.NewHistogramVec(prometheus.HistogramOpts{Namespace: f.namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}, labels)
}

// NewTimer starts timing an operation; call ObserveDuration on the result.
func (c *Collector) NewTimer(observer prometheus.Observer) *prometheus.Timer {
	return prometheus.NewTimer(observer)
}

func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordInteraction counts a selection event; outcome is "ok" or an error class.
func (c *Collector) RecordInteraction(handler, outcome string) {
	c.InteractionEvents.WithLabelValues(handler, outcome).Inc()
}

func (c *Collector) RecordIngestionError(errorType string) {
	c.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool exports sql.DBStats counters.
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues(PoolInUse).Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues(PoolIdle).Set(float64(idle))
	c.DBConnectionPool.WithLabelValues(PoolTotal).Set(float64(total))
}
