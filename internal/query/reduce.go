package query

import (
	"sort"

	"github.com/rafique586/cloudence/internal/models"
)

// groupUnsetValue is the sentinel projected for a group-by field that a
// series does not carry.
const groupUnsetValue = "unset"

// groupKey projects a label set onto the tuple of group-by field values.
func groupKey(labels map[string]string, fields []string) string {
	key := ""
	for i, f := range fields {
		if i > 0 {
			key += "\x00"
		}
		if v, ok := labels[f]; ok {
			key += v
		} else {
			key += groupUnsetValue
		}
	}
	return key
}

// groupSeries partitions aligned series by the tuple of group-by field
// values. With no fields configured, all series form a single group.
// Group order is deterministic (sorted by key).
func groupSeries(series []models.Series, fields []string) [][]models.Series {
	if len(fields) == 0 {
		if len(series) == 0 {
			return nil
		}
		return [][]models.Series{series}
	}

	groups := make(map[string][]models.Series)
	for _, s := range series {
		k := groupKey(s.Labels, fields)
		groups[k] = append(groups[k], s)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]models.Series, 0, len(keys))
	for _, k := range keys {
		out = append(out, groups[k])
	}
	return out
}

// crossReduce collapses one group of aligned series into a single
// series. Every bucket start present in at least one member produces an
// output point, reduced over the members that have a point there —
// partial coverage is reduced over the available subset, never dropped.
func crossReduce(group []models.Series, reducer models.ReducerKind, fields []string) models.Series {
	type bucket struct {
		end    models.AlignedPoint
		values []float64
	}

	byStart := make(map[int64]*bucket)
	for _, s := range group {
		for _, p := range s.Points {
			key := p.BucketStart.UnixNano()
			b, ok := byStart[key]
			if !ok {
				b = &bucket{end: p}
				byStart[key] = b
			}
			b.values = append(b.values, p.Value)
		}
	}

	starts := make([]int64, 0, len(byStart))
	for k := range byStart {
		starts = append(starts, k)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	points := make([]models.AlignedPoint, 0, len(starts))
	for _, k := range starts {
		b := byStart[k]
		points = append(points, models.AlignedPoint{
			BucketStart: b.end.BucketStart,
			BucketEnd:   b.end.BucketEnd,
			Value:       applyReducer(reducer, b.values),
		})
	}

	return models.Series{
		Labels: reducedLabels(group, reducer, fields),
		Points: points,
	}
}

// reducedLabels carries the group-identifying fields forward onto the
// reduced series, plus the reducer name itself. The metric label
// survives only when every group member agrees on it.
func reducedLabels(group []models.Series, reducer models.ReducerKind, fields []string) map[string]string {
	labels := map[string]string{"reducer": string(reducer)}
	if len(group) == 0 {
		return labels
	}
	for _, f := range fields {
		if v, ok := group[0].Labels[f]; ok {
			labels[f] = v
		} else {
			labels[f] = groupUnsetValue
		}
	}
	if metric := group[0].Labels["metric"]; metric != "" {
		unanimous := true
		for _, s := range group[1:] {
			if s.Labels["metric"] != metric {
				unanimous = false
				break
			}
		}
		if unanimous {
			labels["metric"] = metric
		}
	}
	return labels
}

// applyReducer reduces the values present at one timestamp across the
// group. The caller guarantees values is non-empty.
func applyReducer(kind models.ReducerKind, values []float64) float64 {
	switch kind {
	case models.ReduceMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case models.ReduceMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case models.ReduceSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	default: // models.ReduceMean
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}
}
