// Package metrics defines the Prometheus metric collectors used by docindex
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchBatchesTotal   prometheus.Counter
	SearchHitsTotal      prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     prometheus.Counter
	DocsRemovedTotal     prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
	IndexFlushesTotal    *prometheus.CounterVec
	CompactionsTotal     *prometheus.CounterVec
	DocumentCount        prometheus.Gauge
	UncompactedDocuments prometheus.Gauge
	StorageBytes         prometheus.Gauge
	IngestMessagesTotal  *prometheus.CounterVec
}

// New creates all collectors and registers them with reg, or with the
// default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docindex_search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docindex_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"cache_status"},
		),
		SearchBatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docindex_search_batches_total",
				Help: "Total hit batches produced by search cursors.",
			},
		),
		SearchHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docindex_search_hits_total",
				Help: "Total hits returned by search cursors.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docindex_cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docindex_cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docindex_documents_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		DocsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docindex_documents_removed_total",
				Help: "Total documents removed.",
			},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docindex_operation_duration_seconds",
				Help:    "Index operation latency in seconds by operation and status.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"op", "status"},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docindex_flushes_total",
				Help: "Total index flush operations by status.",
			},
			[]string{"status"},
		),
		CompactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docindex_compactions_total",
				Help: "Total index compactions by status.",
			},
			[]string{"status"},
		),
		DocumentCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docindex_documents",
				Help: "Number of live documents.",
			},
		),
		UncompactedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docindex_uncompacted_documents",
				Help: "Removed documents not yet reclaimed by compaction.",
			},
		),
		StorageBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docindex_storage_bytes",
				Help: "Bytes held by the storage backend.",
			},
		),
		IngestMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docindex_ingest_messages_total",
				Help: "Kafka ingest messages by operation and status.",
			},
			[]string{"op", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchBatchesTotal,
		m.SearchHitsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.DocsRemovedTotal,
		m.OperationDuration,
		m.IndexFlushesTotal,
		m.CompactionsTotal,
		m.DocumentCount,
		m.UncompactedDocuments,
		m.StorageBytes,
		m.IngestMessagesTotal,
	)

	return m
}

// ObserveOp records the duration and outcome of an index operation.
func (m *Metrics) ObserveOp(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op, status(err)).Observe(time.Since(start).Seconds())
	switch op {
	case "flush":
		m.IndexFlushesTotal.WithLabelValues(status(err)).Inc()
	case "compact":
		m.CompactionsTotal.WithLabelValues(status(err)).Inc()
	case "index":
		if err == nil {
			m.DocsIndexedTotal.Inc()
		}
	case "remove":
		if err == nil {
			m.DocsRemovedTotal.Inc()
		}
	}
}

// SetIndexState updates the index gauges. A negative uncompacted count
// leaves that gauge untouched.
func (m *Metrics) SetIndexState(documents, uncompacted int, storageBytes int64) {
	if m == nil {
		return
	}
	m.DocumentCount.Set(float64(documents))
	if uncompacted >= 0 {
		m.UncompactedDocuments.Set(float64(uncompacted))
	}
	m.StorageBytes.Set(float64(storageBytes))
}

// ObserveBatch records one batch of search hits.
func (m *Metrics) ObserveBatch(hits int) {
	if m == nil {
		return
	}
	m.SearchBatchesTotal.Inc()
	m.SearchHitsTotal.Add(float64(hits))
}

// ObserveIngest counts one ingest message by operation and outcome.
func (m *Metrics) ObserveIngest(op string, err error) {
	if m == nil {
		return
	}
	m.IngestMessagesTotal.WithLabelValues(op, status(err)).Inc()
}

// ObserveQuery records a completed search request. resultType is "hits" or
// "empty".
func (m *Metrics) ObserveQuery(resultType string, cacheHit bool, start time.Time) {
	if m == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
}

// ObserveCache counts one query-cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the Prometheus scrape HTTP handler for the default
// gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a scrape handler for a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
