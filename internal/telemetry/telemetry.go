// Package telemetry manages Prometheus instrumentation for the query and
// alerting pipeline. Metrics are registered against an injected
// registerer so callers own the registry; there is no package-level
// singleton.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query result labels.
const (
	ResultSuccess        = "success"
	ResultCollectorError = "collector_error"
	ResultInvalidSpec    = "invalid_spec"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	queryTotal    *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	alertsFired   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New creates and registers the pipeline metrics. Registration panics on
// duplicate registration, matching prometheus.MustRegister semantics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cloudence",
				Subsystem: "query",
				Name:      "executions_total",
				Help:      "Query executions partitioned by result.",
			},
			[]string{"result"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cloudence",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Duration of query pipeline executions.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"result"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudence",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Query cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cloudence",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Query cache misses.",
		}),
		alertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cloudence",
				Subsystem: "alerts",
				Name:      "fired_total",
				Help:      "Alert events fired, partitioned by severity.",
			},
			[]string{"severity"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cloudence",
				Subsystem: "notifications",
				Name:      "deliveries_total",
				Help:      "Notification deliveries partitioned by channel and result.",
			},
			[]string{"channel", "result"},
		),
	}

	reg.MustRegister(
		m.queryTotal,
		m.queryDuration,
		m.cacheHits,
		m.cacheMisses,
		m.alertsFired,
		m.notifications,
	)
	return m
}

// ObserveQuery records one query execution. Safe on a nil receiver so
// instrumentation stays optional.
func (m *Metrics) ObserveQuery(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryTotal.WithLabelValues(result).Inc()
	m.queryDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordCacheHit counts a query cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss counts a query cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordAlertFired counts one fired alert event.
func (m *Metrics) RecordAlertFired(severity string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(severity).Inc()
}

// RecordNotification counts one channel delivery attempt.
func (m *Metrics) RecordNotification(channel string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}
