// Package collector defines the interface through which the query engine
// pulls raw samples from a metrics backend, plus simple implementations
// used in tests and mock mode.
package collector

import (
	"context"
	"sort"
	"sync"

	"github.com/rafique586/cloudence/internal/models"
)

// Collector supplies raw samples matching a filter within an interval.
// Implementations wrap cloud monitoring APIs; failures should be wrapped
// with errors.WrapCollectorError so the query engine can recover them as
// empty results. Fetch must honor ctx cancellation.
type Collector interface {
	Fetch(ctx context.Context, filter string, interval models.TimeRange) ([]models.Sample, error)
}

// Func adapts a plain function to the Collector interface.
type Func func(ctx context.Context, filter string, interval models.TimeRange) ([]models.Sample, error)

// Fetch implements Collector.
func (f Func) Fetch(ctx context.Context, filter string, interval models.TimeRange) ([]models.Sample, error) {
	return f(ctx, filter, interval)
}

// Static serves a fixed sample set, filtered by metric ID and interval.
// It backs mock mode and tests.
type Static struct {
	mu      sync.RWMutex
	samples []models.Sample
}

// NewStatic creates a static collector over the given samples.
func NewStatic(samples []models.Sample) *Static {
	s := &Static{samples: make([]models.Sample, len(samples))}
	copy(s.samples, samples)
	return s
}

// Add appends samples to the served set.
func (s *Static) Add(samples ...models.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
}

// Fetch returns the samples whose metric ID equals filter (empty filter
// matches everything) and whose timestamp falls in the interval, ordered
// by timestamp.
func (s *Static) Fetch(ctx context.Context, filter string, interval models.TimeRange) ([]models.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Sample
	for _, sample := range s.samples {
		if filter != "" && sample.MetricID != filter {
			continue
		}
		if !interval.Contains(sample.Timestamp) {
			continue
		}
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
