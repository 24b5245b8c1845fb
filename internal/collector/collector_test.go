package collector

import (
	"context"
	"testing"
	"time"

	"github.com/rafique586/cloudence/internal/models"
)

func sample(metric string, ts int64) models.Sample {
	return models.Sample{MetricID: metric, Timestamp: time.Unix(ts, 0), Value: models.ScalarValue(1)}
}

func TestStaticFiltersByMetricAndInterval(t *testing.T) {
	s := NewStatic([]models.Sample{
		sample("cpu", 10),
		sample("cpu", 200),
		sample("memory", 50),
	})

	interval := models.TimeRange{Start: time.Unix(0, 0), End: time.Unix(100, 0)}
	got, err := s.Fetch(context.Background(), "cpu", interval)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(got) != 1 || !got[0].Timestamp.Equal(time.Unix(10, 0)) {
		t.Fatalf("expected only the in-range cpu sample, got %+v", got)
	}
}

func TestStaticEmptyFilterMatchesAll(t *testing.T) {
	s := NewStatic([]models.Sample{sample("cpu", 10), sample("memory", 20)})
	got, err := s.Fetch(context.Background(), "", models.TimeRange{Start: time.Unix(0, 0), End: time.Unix(100, 0)})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both samples, got %d", len(got))
	}
	if got[0].Timestamp.After(got[1].Timestamp) {
		t.Fatalf("samples must be ordered by timestamp")
	}
}

func TestStaticHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStatic(nil)
	if _, err := s.Fetch(ctx, "", models.TimeRange{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestFuncAdapter(t *testing.T) {
	called := false
	f := Func(func(ctx context.Context, filter string, interval models.TimeRange) ([]models.Sample, error) {
		called = true
		return nil, nil
	})
	if _, err := f.Fetch(context.Background(), "cpu", models.TimeRange{}); err != nil || !called {
		t.Fatalf("adapter did not delegate")
	}
}
