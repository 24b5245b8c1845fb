package alerts

import (
	"math"
	"testing"
	"time"

	"github.com/rafique586/cloudence/internal/models"
)

func event(metric, service string, severity models.Severity) models.AlertEvent {
	return models.AlertEvent{
		Metric:   metric,
		Service:  service,
		Severity: severity,
		FiredAt:  time.Unix(1000, 0),
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreSeverityWeightOnly(t *testing.T) {
	p := NewPrioritizer(nil)
	cases := []struct {
		severity models.Severity
		want     float64
	}{
		{models.SeverityCritical, 1.0},
		{models.SeverityHigh, 0.8},
		{models.SeverityMedium, 0.6},
		{models.SeverityLow, 0.4},
		{models.SeverityInfo, 0.2},
	}
	for _, tc := range cases {
		got := p.Score(event("cpu", "api", tc.severity))
		if !almostEqual(got, tc.want) {
			t.Errorf("%s: score %v, want %v", tc.severity, got, tc.want)
		}
	}
}

func TestScoreMultipliers(t *testing.T) {
	p := NewPrioritizer(map[string]float64{"payments": 2.0})

	e := event("cpu", "payments", models.SeverityHigh)
	e.ImpactScore = 0.5
	e.Frequency = 50

	// 0.8 × (1 + 0.5) × (1 + 0.5) × 2.0
	if got := p.Score(e); !almostEqual(got, 3.6) {
		t.Fatalf("score = %v, want 3.6", got)
	}
}

func TestScoreFrequencySaturates(t *testing.T) {
	p := NewPrioritizer(nil)

	at100 := event("cpu", "", models.SeverityCritical)
	at100.Frequency = 100
	beyond := at100
	beyond.Frequency = 5000

	if p.Score(at100) != p.Score(beyond) {
		t.Fatalf("frequency contribution must saturate at 100")
	}
	if !almostEqual(p.Score(at100), 2.0) {
		t.Fatalf("saturated score = %v, want 2.0", p.Score(at100))
	}
}

func TestScoreZeroFieldsContributeNothing(t *testing.T) {
	p := NewPrioritizer(nil)
	e := event("cpu", "", models.SeverityCritical)
	if got := p.Score(e); !almostEqual(got, 1.0) {
		t.Fatalf("zero impact/frequency must not multiply: got %v", got)
	}
}

func TestCriticalityWildcardMatch(t *testing.T) {
	p := NewPrioritizer(map[string]float64{
		"payments-gateway": 3.0,
		"payments-*":       2.0,
	})

	// Exact match beats the wildcard.
	exact := p.Score(event("cpu", "payments-gateway", models.SeverityCritical))
	if !almostEqual(exact, 3.0) {
		t.Fatalf("exact pattern should win: got %v", exact)
	}

	wild := p.Score(event("cpu", "payments-ledger", models.SeverityCritical))
	if !almostEqual(wild, 2.0) {
		t.Fatalf("wildcard pattern should apply: got %v", wild)
	}

	unmatched := p.Score(event("cpu", "search", models.SeverityCritical))
	if !almostEqual(unmatched, 1.0) {
		t.Fatalf("unmatched service must default to 1.0: got %v", unmatched)
	}
}

func TestDedupeFirstWins(t *testing.T) {
	p := NewPrioritizer(nil)

	first := event("cpu", "api", models.SeverityCritical)
	first.ID = "first"
	first.FiredAt = time.Unix(1000, 0)
	second := event("cpu", "api", models.SeverityCritical)
	second.ID = "second"
	second.FiredAt = time.Unix(2000, 0)

	out := p.PrioritizeAndDedupe([]models.AlertEvent{first, second})
	if len(out) != 1 {
		t.Fatalf("identical (metric, service, severity) must collapse to one event, got %d", len(out))
	}
	if out[0].ID != "first" {
		t.Fatalf("dedup must keep the first occurrence, got %q", out[0].ID)
	}
}

func TestDedupeDistinguishesKeyFields(t *testing.T) {
	p := NewPrioritizer(nil)

	batch := []models.AlertEvent{
		event("cpu", "api", models.SeverityCritical),
		event("cpu", "api", models.SeverityHigh),
		event("cpu", "web", models.SeverityCritical),
		event("memory", "api", models.SeverityCritical),
	}
	out := p.PrioritizeAndDedupe(batch)
	if len(out) != 4 {
		t.Fatalf("any differing key field makes events distinct, got %d survivors", len(out))
	}
}

func TestPrioritizeOrdersByScoreDescending(t *testing.T) {
	p := NewPrioritizer(map[string]float64{"payments": 2.0})

	batch := []models.AlertEvent{
		event("disk", "search", models.SeverityLow),
		event("cpu", "payments", models.SeverityHigh),
		event("memory", "api", models.SeverityCritical),
	}
	out := p.PrioritizeAndDedupe(batch)

	// payments high = 1.6, api critical = 1.0, search low = 0.4.
	if out[0].Metric != "cpu" || out[1].Metric != "memory" || out[2].Metric != "disk" {
		t.Fatalf("output not in descending score order: %+v", out)
	}
}

func TestPrioritizeTieBreaksOnFiredAt(t *testing.T) {
	p := NewPrioritizer(nil)

	older := event("cpu", "api", models.SeverityHigh)
	older.FiredAt = time.Unix(1000, 0)
	newer := event("memory", "api", models.SeverityHigh)
	newer.FiredAt = time.Unix(2000, 0)

	out := p.PrioritizeAndDedupe([]models.AlertEvent{older, newer})
	if out[0].Metric != "memory" {
		t.Fatalf("equal scores must order by most recent fired_at: %+v", out)
	}
}

func TestPrioritizeDoesNotModifyInput(t *testing.T) {
	p := NewPrioritizer(nil)

	batch := []models.AlertEvent{
		event("disk", "search", models.SeverityLow),
		event("memory", "api", models.SeverityCritical),
	}
	p.PrioritizeAndDedupe(batch)

	if batch[0].Metric != "disk" || batch[1].Metric != "memory" {
		t.Fatalf("input slice was reordered: %+v", batch)
	}
}

func TestPrioritizeEmptyBatch(t *testing.T) {
	p := NewPrioritizer(nil)
	if out := p.PrioritizeAndDedupe(nil); len(out) != 0 {
		t.Fatalf("empty batch must yield an empty result, got %+v", out)
	}
}
