package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQueryCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveQuery(ResultSuccess, 50*time.Millisecond)
	m.ObserveQuery(ResultSuccess, 10*time.Millisecond)
	m.ObserveQuery(ResultCollectorError, time.Second)

	if got := testutil.ToFloat64(m.queryTotal.WithLabelValues(ResultSuccess)); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.queryTotal.WithLabelValues(ResultCollectorError)); got != 1 {
		t.Fatalf("collector_error count = %v, want 1", got)
	}
}

func TestCacheCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	expected := strings.NewReader(`
# HELP cloudence_cache_hits_total Query cache hits.
# TYPE cloudence_cache_hits_total counter
cloudence_cache_hits_total 2
`)
	if err := testutil.GatherAndCompare(reg, expected, "cloudence_cache_hits_total"); err != nil {
		t.Fatalf("unexpected cache hit metric: %v", err)
	}
	if got := testutil.ToFloat64(m.cacheMisses); got != 1 {
		t.Fatalf("miss count = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveQuery(ResultSuccess, time.Second)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordAlertFired("CRITICAL")
	m.RecordNotification("webhook", false)
}

func TestNotificationResultLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordNotification("ops-webhook", true)
	m.RecordNotification("ops-webhook", false)
	m.RecordNotification("ops-webhook", false)

	if got := testutil.ToFloat64(m.notifications.WithLabelValues("ops-webhook", "failure")); got != 2 {
		t.Fatalf("failure count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("ops-webhook", "success")); got != 1 {
		t.Fatalf("success count = %v, want 1", got)
	}
}
