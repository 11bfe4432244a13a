package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP, cache and pipeline
// instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	importRows        *prometheus.CounterVec
	importDuration    prometheus.Histogram
	archived          prometheus.Counter
	archiveFailures   prometheus.Counter
	reconcileRuns     *prometheus.CounterVec
	reconcileDrift    prometheus.Counter
	restoredRecipient prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Imported data rows by outcome",
	}, []string{"outcome"})

	importDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_duration_seconds",
		Help:    "Wall time spent processing one upload",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	archived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipients_archived_total",
		Help: "Recipients archived and deleted",
	})

	archiveFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipient_archive_failures_total",
		Help: "Recipients a delete request could not archive",
	})

	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_runs_total",
		Help: "Campaign counter reconciliations by result",
	}, []string{"result"})

	reconcileDrift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_drift_total",
		Help: "Reconciliations that found total_recipients out of date",
	})

	restored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipients_restored_total",
		Help: "Archived recipients restored",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		importRows, importDuration, archived, archiveFailures, reconcileRuns, reconcileDrift, restored, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		importRows:        importRows,
		importDuration:    importDuration,
		archived:          archived,
		archiveFailures:   archiveFailures,
		reconcileRuns:     reconcileRuns,
		reconcileDrift:    reconcileDrift,
		restoredRecipient: restored,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveImport records the per-outcome row counts of one batch.
func (m *MetricsService) ObserveImport(batch *models.ImportBatch, duration time.Duration) {
	if m == nil || batch == nil {
		return
	}
	m.importRows.WithLabelValues(string(models.RowImported)).Add(float64(batch.ImportedCount))
	m.importRows.WithLabelValues(string(models.RowSkippedDuplicate)).Add(float64(batch.SkippedDuplicateCount))
	m.importRows.WithLabelValues(string(models.RowSkippedInvalid)).Add(float64(batch.SkippedInvalidCount))
	m.importDuration.Observe(duration.Seconds())
}

// ObserveArchive records archived rows and per-row failures.
func (m *MetricsService) ObserveArchive(archived, failed int) {
	if m == nil {
		return
	}
	m.archived.Add(float64(archived))
	m.archiveFailures.Add(float64(failed))
}

// ObserveRestore counts a restored recipient.
func (m *MetricsService) ObserveRestore() {
	if m == nil {
		return
	}
	m.restoredRecipient.Inc()
}

// ObserveReconcile records one reconcile run.
func (m *MetricsService) ObserveReconcile(drifted bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.reconcileRuns.WithLabelValues("error").Inc()
	case drifted:
		m.reconcileRuns.WithLabelValues("drift").Inc()
		m.reconcileDrift.Inc()
	default:
		m.reconcileRuns.WithLabelValues("ok").Inc()
	}
}
