package models

import (
	"math"
	"testing"
	"time"
)

func TestValueScalarProjection(t *testing.T) {
	v := ScalarValue(42.5)
	if v.Kind() != ValueScalar {
		t.Fatalf("expected scalar kind")
	}
	if v.Scalar() != 42.5 {
		t.Fatalf("expected 42.5, got %v", v.Scalar())
	}

	d := DistributionValue(10, 3.25, 1.5)
	if d.Kind() != ValueDistribution {
		t.Fatalf("expected distribution kind")
	}
	if d.Scalar() != 3.25 {
		t.Fatalf("distribution should project to mean, got %v", d.Scalar())
	}
	if d.Distribution().Count != 10 || d.Distribution().SumOfSquaredDeviation != 1.5 {
		t.Fatalf("distribution fields lost: %+v", d.Distribution())
	}
}

func TestValueUsable(t *testing.T) {
	if !ScalarValue(0).Usable() {
		t.Fatalf("zero should be usable")
	}
	if ScalarValue(math.NaN()).Usable() {
		t.Fatalf("NaN should not be usable")
	}
	if ScalarValue(math.Inf(1)).Usable() {
		t.Fatalf("+Inf should not be usable")
	}
	if DistributionValue(1, math.Inf(-1), 0).Usable() {
		t.Fatalf("distribution with infinite mean should not be usable")
	}
}

func TestTimeRangeContains(t *testing.T) {
	start := time.Unix(100, 0)
	end := time.Unix(200, 0)
	r := TimeRange{Start: start, End: end}

	if !r.Contains(start) {
		t.Fatalf("range should include its start")
	}
	if r.Contains(end) {
		t.Fatalf("range should exclude its end")
	}
	if r.Contains(start.Add(-time.Second)) {
		t.Fatalf("range should exclude timestamps before start")
	}
}

func TestQuerySpecValidate(t *testing.T) {
	base := QuerySpec{
		Filter:          `metric.type = "cpu"`,
		Start:           time.Unix(0, 0),
		End:             time.Unix(600, 0),
		AlignmentPeriod: time.Minute,
		Aligner:         AlignMean,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*QuerySpec)
	}{
		{"start equals end", func(q *QuerySpec) { q.End = q.Start }},
		{"start after end", func(q *QuerySpec) { q.Start = q.End.Add(time.Hour) }},
		{"zero alignment period", func(q *QuerySpec) { q.AlignmentPeriod = 0 }},
		{"negative alignment period", func(q *QuerySpec) { q.AlignmentPeriod = -time.Second }},
		{"unknown aligner", func(q *QuerySpec) { q.Aligner = "median" }},
		{"unknown reducer", func(q *QuerySpec) { q.Reducer = "p95" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := base
			tc.mutate(&spec)
			if err := spec.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestQuerySpecCacheKeyDeterministic(t *testing.T) {
	spec := QuerySpec{
		Filter:          `metric.type = "cpu"`,
		Start:           time.Unix(0, 0),
		End:             time.Unix(3600, 0),
		AlignmentPeriod: time.Minute,
		Aligner:         AlignMean,
		Reducer:         ReduceMax,
		GroupByFields:   []string{"pod_name"},
	}

	if spec.CacheKey() != spec.CacheKey() {
		t.Fatalf("cache key must be deterministic")
	}

	other := spec
	other.Reducer = ReduceMin
	if spec.CacheKey() == other.CacheKey() {
		t.Fatalf("different specs must not share a cache key")
	}

	regrouped := spec
	regrouped.GroupByFields = []string{"zone"}
	if spec.CacheKey() == regrouped.CacheKey() {
		t.Fatalf("group-by fields must contribute to the cache key")
	}
}

func TestSeriesLabelSignature(t *testing.T) {
	a := Series{Labels: map[string]string{"zone": "us-east1", "pod": "api-1"}}
	b := Series{Labels: map[string]string{"pod": "api-1", "zone": "us-east1"}}
	if a.LabelSignature() != b.LabelSignature() {
		t.Fatalf("signature must be order independent: %q vs %q", a.LabelSignature(), b.LabelSignature())
	}
	if a.LabelSignature() != "pod=api-1,zone=us-east1" {
		t.Fatalf("unexpected signature %q", a.LabelSignature())
	}
}
