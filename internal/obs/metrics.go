package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reconcileRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_runs_total",
		Help: "Completed payment reconciliation runs.",
	})

	reconcileInvoicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_invoices_total",
			Help: "Invoices examined by the reconciliation job, by outcome.",
		},
		[]string{"outcome"},
	)

	invoiceNumbersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoice_numbers_allocated_total",
		Help: "Invoice numbers allocated across all tenants.",
	})
)

// Init registers service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		reconcileRunsTotal,
		reconcileInvoicesTotal,
		invoiceNumbersTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveReconcileRun records one completed reconciliation pass.
func ObserveReconcileRun() { reconcileRunsTotal.Inc() }

// ObserveReconcileOutcome counts a single invoice outcome within a run
// (paid, pending, error, skipped).
func ObserveReconcileOutcome(outcome string) {
	reconcileInvoicesTotal.WithLabelValues(outcome).Inc()
}

// ObserveInvoiceNumber counts a successful number allocation.
func ObserveInvoiceNumber() { invoiceNumbersTotal.Inc() }

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
