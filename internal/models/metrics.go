// Package models defines the data types shared across the metrics query
// and alerting pipeline: raw samples, aligned series, query specifications,
// alert rules and alert events.
package models

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"
)

// ValueKind discriminates the sample value union.
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueDistribution
)

// Distribution holds the summary statistics of a distribution-typed sample.
type Distribution struct {
	Count                 int64   `json:"count"`
	Mean                  float64 `json:"mean"`
	SumOfSquaredDeviation float64 `json:"sum_of_squared_deviation"`
}

// Value is a closed scalar-or-distribution union. The zero value is a
// scalar zero.
type Value struct {
	kind         ValueKind
	scalar       float64
	distribution Distribution
}

// ScalarValue wraps a plain double sample value.
func ScalarValue(v float64) Value {
	return Value{kind: ValueScalar, scalar: v}
}

// DistributionValue wraps distribution summary statistics.
func DistributionValue(count int64, mean, sumOfSquaredDeviation float64) Value {
	return Value{
		kind: ValueDistribution,
		distribution: Distribution{
			Count:                 count,
			Mean:                  mean,
			SumOfSquaredDeviation: sumOfSquaredDeviation,
		},
	}
}

// Kind reports which arm of the union is populated.
func (v Value) Kind() ValueKind { return v.kind }

// Scalar projects the value onto a single double. Distribution samples
// project to their mean.
func (v Value) Scalar() float64 {
	if v.kind == ValueDistribution {
		return v.distribution.Mean
	}
	return v.scalar
}

// Distribution returns the distribution arm. Only meaningful when
// Kind() == ValueDistribution.
func (v Value) Distribution() Distribution { return v.distribution }

// Usable reports whether the scalar projection is a finite number that
// aligners and reducers may consume.
func (v Value) Usable() bool {
	s := v.Scalar()
	return !math.IsNaN(s) && !math.IsInf(s, 0)
}

// Sample is one raw metric observation as returned by a collector.
// Samples are immutable once produced.
type Sample struct {
	MetricID       string            `json:"metric_id"`
	ResourceLabels map[string]string `json:"resource_labels,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Value          Value             `json:"value"`
}

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether ts falls inside the half-open interval.
func (r TimeRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && ts.Before(r.End)
}

// AlignedPoint is the result of applying an aligner to all samples of one
// series falling in one fixed-width bucket.
type AlignedPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
	Value       float64   `json:"value"`
}

// Series is an ordered sequence of aligned points for one label set.
type Series struct {
	Labels map[string]string `json:"labels,omitempty"`
	Points []AlignedPoint    `json:"points"`
}

// LabelSignature renders the label set as a canonical sorted string,
// used for deterministic series ordering and group keys.
func (s Series) LabelSignature() string {
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.Labels[k])
	}
	return b.String()
}

// AlignerKind names the per-series alignment function.
type AlignerKind string

const (
	AlignMean  AlignerKind = "mean"
	AlignMax   AlignerKind = "max"
	AlignMin   AlignerKind = "min"
	AlignSum   AlignerKind = "sum"
	AlignCount AlignerKind = "count"
)

// Valid reports whether the aligner kind is one of the known functions.
func (a AlignerKind) Valid() bool {
	switch a {
	case AlignMean, AlignMax, AlignMin, AlignSum, AlignCount:
		return true
	}
	return false
}

// ReducerKind names the cross-series reduction function. ReduceNone
// disables cross-series reduction.
type ReducerKind string

const (
	ReduceNone ReducerKind = ""
	ReduceMean ReducerKind = "mean"
	ReduceMax  ReducerKind = "max"
	ReduceMin  ReducerKind = "min"
	ReduceSum  ReducerKind = "sum"
)

// Valid reports whether the reducer kind is known (ReduceNone included).
func (r ReducerKind) Valid() bool {
	switch r {
	case ReduceNone, ReduceMean, ReduceMax, ReduceMin, ReduceSum:
		return true
	}
	return false
}

// QuerySpec declares one fetch-align-reduce pipeline.
type QuerySpec struct {
	Filter          string        `json:"filter"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	AlignmentPeriod time.Duration `json:"alignment_period"`
	Aligner         AlignerKind   `json:"per_series_aligner"`
	Reducer         ReducerKind   `json:"cross_series_reducer,omitempty"`
	GroupByFields   []string      `json:"group_by_fields,omitempty"`
}

// Interval returns the query window as a half-open range.
func (q QuerySpec) Interval() TimeRange {
	return TimeRange{Start: q.Start, End: q.End}
}

// Validate checks the spec invariants. Violations are surfaced to the
// caller and never retried.
func (q QuerySpec) Validate() error {
	if !q.Start.Before(q.End) {
		return fmt.Errorf("query spec: start %s must be before end %s", q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	}
	if q.AlignmentPeriod <= 0 {
		return fmt.Errorf("query spec: alignment period must be positive, got %s", q.AlignmentPeriod)
	}
	if !q.Aligner.Valid() {
		return fmt.Errorf("query spec: unknown aligner %q", string(q.Aligner))
	}
	if !q.Reducer.Valid() {
		return fmt.Errorf("query spec: unknown reducer %q", string(q.Reducer))
	}
	return nil
}

// CacheKey returns a deterministic key identifying the spec for result
// memoization. Two specs with identical fields always hash identically.
func (q QuerySpec) CacheKey() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d|%d|%s|%s", q.Filter, q.Start.UnixNano(), q.End.UnixNano(), q.AlignmentPeriod, q.Aligner, q.Reducer)
	for _, f := range q.GroupByFields {
		fmt.Fprintf(h, "|%s", f)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
