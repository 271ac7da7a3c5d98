// Package metrics holds the Prometheus collectors for segment decoding,
// lookups and the HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Lookup results.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupFiltered = "filtered"
	LookupError    = "error"
)

// Metrics holds all Prometheus metrics for the value log
type Metrics struct {
	// Decoding metrics
	recordsDecodedTotal prometheus.Counter
	bytesDecodedTotal   prometheus.Counter
	scansTotal          *prometheus.CounterVec
	scanDuration        prometheus.Histogram
	checksumFailures    prometheus.Counter

	// Store metrics
	segmentsFlushedTotal prometheus.Counter
	segmentsOpen         prometheus.Gauge
	lookupsTotal         *prometheus.CounterVec
	lookupDuration       prometheus.Histogram

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec
	authRequestsTotal    *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		recordsDecodedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlog_records_decoded_total",
			Help: "Total number of record blocks decoded from segments",
		}),
		bytesDecodedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlog_bytes_decoded_total",
			Help: "Total number of segment bytes consumed by decoded blocks",
		}),
		scansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vlog_scans_total",
			Help: "Total number of segment scans by how they ended",
		}, []string{"end"}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vlog_scan_duration_seconds",
			Help:    "Duration of full segment scans in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		checksumFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlog_checksum_failures_total",
			Help: "Total number of records whose checksum did not match",
		}),

		segmentsFlushedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vlog_segments_flushed_total",
			Help: "Total number of segments written and sealed",
		}),
		segmentsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vlog_segments_open",
			Help: "Number of segments registered with the store",
		}),
		lookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vlog_lookups_total",
			Help: "Total number of key lookups by result",
		}, []string{"result"}),
		lookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vlog_lookup_duration_seconds",
			Help:    "Key lookup duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vlog_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vlog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		httpRequestsInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vlog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}, []string{"method", "endpoint"}),
		authRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vlog_auth_requests_total",
			Help: "Total number of authentication requests",
		}, []string{"status"}),
	}
}

// RecordDecoded records one decoded block of size bytes
func (m *Metrics) RecordDecoded(size int64) {
	if m == nil {
		return
	}
	m.recordsDecodedTotal.Inc()
	m.bytesDecodedTotal.Add(float64(size))
}

// RecordScan records a finished scan and how it ended
func (m *Metrics) RecordScan(end string, duration time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(end).Inc()
	m.scanDuration.Observe(duration.Seconds())
}

// RecordChecksumFailure counts a record that failed verification
func (m *Metrics) RecordChecksumFailure() {
	if m == nil {
		return
	}
	m.checksumFailures.Inc()
}

// RecordFlush counts a sealed segment
func (m *Metrics) RecordFlush() {
	if m == nil {
		return
	}
	m.segmentsFlushedTotal.Inc()
}

// SetSegments updates the open segment gauge
func (m *Metrics) SetSegments(n int) {
	if m == nil {
		return
	}
	m.segmentsOpen.Set(float64(n))
}

// RecordLookup records a key lookup
func (m *Metrics) RecordLookup(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(result).Inc()
	m.lookupDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	if m == nil {
		return
	}
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Capture the status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
