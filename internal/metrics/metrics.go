// Package metrics exposes the scheduler's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	operationsTotal     *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	lockContention      prometheus.Counter
	lockUnavailable     prometheus.Counter
	slotsReconciled     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduling_operations_total",
				Help: "Scheduling engine operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scheduling_operation_duration_seconds",
				Help:    "Duration of scheduling engine operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"op"},
		),
		lockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_lock_contention_total",
			Help: "Booking attempts rejected because another request held the lock",
		}),
		lockUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_lock_unavailable_total",
			Help: "Operations that ran without a lock because Redis was unreachable",
		}),
		slotsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_slots_reconciled_total",
			Help: "Slots freed by the reconcile worker",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.operationsTotal,
		m.operationDuration,
		m.lockContention,
		m.lockUnavailable,
		m.slotsReconciled,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveOperation records one engine call. outcome is "ok" or an error kind.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(op, outcome).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) LockContended() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

func (m *Metrics) LockUnavailable() {
	if m == nil {
		return
	}
	m.lockUnavailable.Inc()
}

func (m *Metrics) SlotsReconciled(n int) {
	if m == nil {
		return
	}
	m.slotsReconciled.Add(float64(n))
}
