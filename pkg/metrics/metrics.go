// Package metrics exposes Prometheus collectors for the two-factor engine and
// its HTTP surface.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "campusmind"

// Options configures collector registration.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

func (o Options) withDefaults() Options {
	if o.Registerer == nil {
		o.Registerer = prometheus.DefaultRegisterer
	}
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if len(o.Buckets) == 0 {
		o.Buckets = prometheus.DefBuckets
	}
	return o
}

// TwoFactor records engine operations. It satisfies twofactor.Metrics.
type TwoFactor struct {
	Operations  *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	BackupCodes prometheus.Counter
}

// NewTwoFactor registers the engine collectors.
func NewTwoFactor(opts Options) (*TwoFactor, error) {
	opts = opts.withDefaults()

	ops, err := register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "twofactor",
		Name:      "operations_total",
		Help:      "Two-factor operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: "twofactor",
		Name:      "operation_duration_seconds",
		Help:      "Latency of two-factor operations in seconds.",
		Buckets:   opts.Buckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}

	backup, err := register(opts.Registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "twofactor",
		Name:      "backup_codes_consumed_total",
		Help:      "Backup codes accepted in place of a TOTP code.",
	}))
	if err != nil {
		return nil, err
	}

	return &TwoFactor{Operations: ops, Duration: duration, BackupCodes: backup}, nil
}

// ObserveOperation counts one operation and records its latency.
func (m *TwoFactor) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// BackupCodeConsumed counts one accepted backup code.
func (m *TwoFactor) BackupCodeConsumed() {
	m.BackupCodes.Inc()
}

// HTTP records request counts and latencies per chi route pattern.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTP registers the HTTP collectors.
func NewHTTP(opts Options) (*HTTP, error) {
	opts = opts.withDefaults()

	requests, err := register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests partitioned by method, route and status code.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies in seconds.",
		Buckets:   opts.Buckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(opts.Registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: opts.Namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	}))
	if err != nil {
		return nil, err
	}

	return &HTTP{Requests: requests, Duration: duration, InFlight: inFlight}, nil
}

// Middleware records every request. A nil *HTTP passes requests through.
func (m *HTTP) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  routePattern(r),
			"status": strconv.Itoa(status),
		}
		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded: unmatched paths share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// register adds c to reg, reusing a collector that is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}
