// Package query implements the metrics query pipeline: fetching raw
// samples through a collector, aligning them into fixed-width buckets,
// and optionally grouping and reducing across series.
package query

import (
	"sort"
	"time"

	"github.com/rafique586/cloudence/internal/models"
)

// rawSeries is one distinct label set with its unaligned samples.
type rawSeries struct {
	labels  map[string]string
	samples []models.Sample
}

// partitionSeries splits a flat sample set into one raw series per
// distinct (metric, resource labels) combination, in deterministic order.
func partitionSeries(samples []models.Sample) []rawSeries {
	index := make(map[string]int)
	var out []rawSeries

	for _, s := range samples {
		sig := seriesSignature(s)
		i, ok := index[sig]
		if !ok {
			labels := make(map[string]string, len(s.ResourceLabels)+1)
			for k, v := range s.ResourceLabels {
				labels[k] = v
			}
			if s.MetricID != "" {
				labels["metric"] = s.MetricID
			}
			index[sig] = len(out)
			out = append(out, rawSeries{labels: labels})
			i = len(out) - 1
		}
		out[i].samples = append(out[i].samples, s)
	}

	sort.Slice(out, func(i, j int) bool {
		return models.Series{Labels: out[i].labels}.LabelSignature() < models.Series{Labels: out[j].labels}.LabelSignature()
	})
	return out
}

func seriesSignature(s models.Sample) string {
	return s.MetricID + "|" + models.Series{Labels: s.ResourceLabels}.LabelSignature()
}

// alignSeries buckets one series' samples into contiguous windows of
// width spec.AlignmentPeriod starting at spec.Start and applies the
// per-series aligner within each bucket. Empty buckets are omitted; no
// forward-fill. Duplicate timestamps all contribute to their bucket.
// Samples with non-finite scalar projections are excluded from the
// aligner input set.
func alignSeries(samples []models.Sample, spec models.QuerySpec) []models.AlignedPoint {
	period := spec.AlignmentPeriod
	buckets := make(map[int64][]float64)

	for _, s := range samples {
		if s.Timestamp.Before(spec.Start) || !s.Timestamp.Before(spec.End) {
			continue
		}
		if !s.Value.Usable() {
			continue
		}
		idx := int64(s.Timestamp.Sub(spec.Start) / period)
		buckets[idx] = append(buckets[idx], s.Value.Scalar())
	}

	indices := make([]int64, 0, len(buckets))
	for idx := range buckets {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	points := make([]models.AlignedPoint, 0, len(indices))
	for _, idx := range indices {
		values := buckets[idx]
		bucketStart := spec.Start.Add(time.Duration(idx) * period)
		points = append(points, models.AlignedPoint{
			BucketStart: bucketStart,
			BucketEnd:   bucketStart.Add(period),
			Value:       applyAligner(spec.Aligner, values),
		})
	}
	return points
}

// applyAligner reduces the usable values of one bucket. The caller
// guarantees values is non-empty.
func applyAligner(kind models.AlignerKind, values []float64) float64 {
	switch kind {
	case models.AlignMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case models.AlignMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case models.AlignSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case models.AlignCount:
		return float64(len(values))
	default: // models.AlignMean
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}
}
