// Package metrics holds the Prometheus collectors shared by the download
// facility and the dispatcher.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "webshell"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// so packages can take one optionally.
type Metrics struct {
	Submitted   *prometheus.CounterVec
	Completed   *prometheus.CounterVec
	Pending     prometheus.Gauge
	Bytes       prometheus.Counter
	Transfers   prometheus.Gauge
	Navigations *prometheus.CounterVec

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Registration panics on duplicates,
// like promauto does.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_submitted_total",
			Help:      "Download requests handed to the facility, by outcome.",
		}, []string{"result"}),
		Completed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_completed_total",
			Help:      "Finished downloads, by terminal status.",
		}, []string{"status"}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_pending",
			Help:      "Downloads submitted and not yet completed.",
		}),
		Bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written by successful transfers.",
		}),
		Transfers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfers_running",
			Help:      "Transfers currently streaming to disk.",
		}),
		Navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Navigations routed by the shell, by action.",
		}, []string{"action"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Bridge API requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Bridge API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// SubmitResult counts a submission as "ok" or "error".
func (m *Metrics) SubmitResult(err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Submitted.WithLabelValues(result).Inc()
}

// Complete counts a terminal status.
func (m *Metrics) Complete(status string) {
	if m == nil {
		return
	}
	m.Completed.WithLabelValues(status).Inc()
}

// SetPending records the size of the pending set.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

// TransferStarted and TransferDone track running transfers.
func (m *Metrics) TransferStarted() {
	if m == nil {
		return
	}
	m.Transfers.Inc()
}

func (m *Metrics) TransferDone(bytes int64) {
	if m == nil {
		return
	}
	m.Transfers.Dec()
	if bytes > 0 {
		m.Bytes.Add(float64(bytes))
	}
}

// Navigation counts a routed navigation.
func (m *Metrics) Navigation(action string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(action).Inc()
}

// ObserveRequest records one bridge API request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
