package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/ledger/internal/apperrors"
)

const namespace = "ledger"

var (
	// Registry holds the application-specific Prometheus collectors
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	movements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "movements_total",
			Help:      "Movement requests by type and result.",
		},
		[]string{"type", "result"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Transfer requests by result.",
		},
		[]string{"result"},
	)

	fees = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "fee_charges_total",
			Help:      "Fee charge attempts by source and result.",
		},
		[]string{"source", "result"},
	)

	replays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "idempotency",
			Name:      "replays_total",
			Help:      "Requests answered with the stored outcome of an earlier request.",
		},
		[]string{"operation"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		movements,
		transfers,
		fees,
		replays,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the handler of the route with HTTP metrics collection
// Route is the registered pattern, so label cardinality doesn't depend on path values
func InstrumentHandler(route string, next http.Handler) http.Handler {
	// Pattern may contain method: 'GET /api/account/balance'
	if _, path, found := strings.Cut(route, " "); found {
		route = path
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// Movement type is 'C' or 'D'
func RecordMovement(movementType string, err error) {
	movements.WithLabelValues(movementType, result(err)).Inc()
}

func RecordTransfer(err error) {
	transfers.WithLabelValues(result(err)).Inc()
}

// Source is where the charge came from: 'inline' right after transfer or 'settlement' worker
func RecordFee(source string, err error) {
	fees.WithLabelValues(source, result(err)).Inc()
}

func RecordReplay(operation string) {
	replays.WithLabelValues(operation).Inc()
}

// Label value for operation outcome: 'ok', application error code or 'error'
func result(err error) string {
	if err == nil {
		return "ok"
	}

	if appErr, ok := apperrors.As(err); ok {
		return appErr.Code
	}

	return "error"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
