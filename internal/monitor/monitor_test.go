package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rafique586/cloudence/internal/collector"
	"github.com/rafique586/cloudence/internal/config"
	"github.com/rafique586/cloudence/internal/models"
)

func fixedNow(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := nowFn
	nowFn = func() time.Time { return now }
	t.Cleanup(func() { nowFn = orig })
	return now
}

func testConfig(webhookURL string) *config.Config {
	cfg := config.Default()
	cfg.Queries = []config.QueryConfig{{
		Name:            "cpu-check",
		Filter:          "cpu",
		Lookback:        config.Duration(10 * time.Minute),
		AlignmentPeriod: config.Duration(time.Minute),
		Aligner:         models.AlignMean,
	}}
	cfg.Rules = []config.RuleConfig{{
		Metric:     "cpu",
		Threshold:  80,
		Comparator: models.CompareGT,
		Severity:   models.SeverityCritical,
		Service:    "api",
	}}
	if webhookURL != "" {
		cfg.Webhooks = []config.WebhookChannelConfig{{Name: "test", URL: webhookURL}}
	}
	return cfg
}

func TestTickEvaluatesAndDispatches(t *testing.T) {
	now := fixedNow(t)

	var mu sync.Mutex
	var payloads []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
			mu.Lock()
			payloads = append(payloads, p)
			mu.Unlock()
		}
	}))
	defer srv.Close()

	col := collector.NewStatic([]models.Sample{{
		MetricID:  "cpu",
		Timestamp: now.Add(-time.Minute),
		Value:     models.ScalarValue(95),
	}})

	m := New(col, testConfig(srv.URL), nil)
	m.tick(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("expected one delivered alert, got %d", len(payloads))
	}
	if payloads[0]["metric"] != "cpu" || payloads[0]["value"] != 95.0 {
		t.Fatalf("payload wrong: %+v", payloads[0])
	}

	history := m.Alerts().History(0)
	if len(history) != 1 || history[0].Severity != models.SeverityCritical {
		t.Fatalf("evaluation must be recorded in history: %+v", history)
	}
}

func TestTickBelowThresholdDeliversNothing(t *testing.T) {
	now := fixedNow(t)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	col := collector.NewStatic([]models.Sample{{
		MetricID:  "cpu",
		Timestamp: now.Add(-time.Minute),
		Value:     models.ScalarValue(40),
	}})

	m := New(col, testConfig(srv.URL), nil)
	m.tick(context.Background())

	if calls != 0 {
		t.Fatalf("non-qualifying value must not dispatch, saw %d calls", calls)
	}
}

func TestTickUsesLatestAlignedValue(t *testing.T) {
	now := fixedNow(t)

	col := collector.NewStatic([]models.Sample{
		{MetricID: "cpu", Timestamp: now.Add(-5 * time.Minute), Value: models.ScalarValue(95)},
		{MetricID: "cpu", Timestamp: now.Add(-time.Minute), Value: models.ScalarValue(40)},
	})

	m := New(col, testConfig(""), nil)
	m.tick(context.Background())

	if len(m.Alerts().History(0)) != 0 {
		t.Fatalf("only the latest aligned value counts; 40 must not fire")
	}
}

func TestApplyReplacesRules(t *testing.T) {
	now := fixedNow(t)

	col := collector.NewStatic([]models.Sample{{
		MetricID:  "cpu",
		Timestamp: now.Add(-time.Minute),
		Value:     models.ScalarValue(85),
	}})

	cfg := testConfig("")
	m := New(col, cfg, nil)

	// Raise the threshold above the observed value.
	cfg.Rules[0].Threshold = 90
	m.Apply(cfg)

	m.tick(context.Background())
	if len(m.Alerts().History(0)) != 0 {
		t.Fatalf("reloaded threshold must apply")
	}
}

func TestApplyRemovesDeletedRules(t *testing.T) {
	now := fixedNow(t)

	col := collector.NewStatic([]models.Sample{{
		MetricID:  "cpu",
		Timestamp: now.Add(-time.Minute),
		Value:     models.ScalarValue(95),
	}})

	cfg := testConfig("")
	m := New(col, cfg, nil)
	m.tick(context.Background())
	if len(m.Alerts().History(0)) != 1 {
		t.Fatalf("rule should fire before the reload")
	}

	cfg.Rules = nil
	m.Apply(cfg)

	m.tick(context.Background())
	if len(m.Alerts().History(0)) != 1 {
		t.Fatalf("a rule deleted from the configuration must stop firing")
	}
	if _, ok := m.Alerts().Rule("cpu"); ok {
		t.Fatalf("deleted rule must not survive the reload")
	}
}

func TestApplyUpdatesPollInterval(t *testing.T) {
	var fetches atomic.Int64
	col := collector.Func(func(ctx context.Context, filter string, interval models.TimeRange) ([]models.Sample, error) {
		fetches.Add(1)
		return nil, nil
	})

	cfg := testConfig("")
	cfg.PollInterval = config.Duration(time.Hour)
	m := New(col, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for fetches.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fetches.Load() == 0 {
		t.Fatalf("first tick should run immediately")
	}

	cfg.PollInterval = config.Duration(10 * time.Millisecond)
	m.Apply(cfg)

	deadline = time.Now().Add(2 * time.Second)
	for fetches.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fetches.Load() < 3 {
		t.Fatalf("reloaded poll interval must take effect without restart, saw %d fetches", fetches.Load())
	}
}

func TestStartStop(t *testing.T) {
	fixedNow(t)

	cfg := testConfig("")
	cfg.PollInterval = config.Duration(10 * time.Millisecond)

	m := New(collector.NewStatic(nil), cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return")
	}
}
