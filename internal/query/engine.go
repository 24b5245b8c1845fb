package query

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rafique586/cloudence/internal/cache"
	"github.com/rafique586/cloudence/internal/collector"
	"github.com/rafique586/cloudence/internal/errors"
	"github.com/rafique586/cloudence/internal/models"
	"github.com/rafique586/cloudence/internal/telemetry"
)

const (
	// cacheNamespace scopes memoized query results in the shared cache.
	cacheNamespace = "query"

	defaultFetchTimeout = 30 * time.Second
	defaultConcurrency  = 8
)

// Engine is the single entry point for executing query specs. It owns no
// global state; callers construct one per collector and share it freely.
type Engine struct {
	collector    collector.Collector
	cache        *cache.Cache[[]models.Series]
	metrics      *telemetry.Metrics
	fetchTimeout time.Duration
	concurrency  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache memoizes successful query results under a key derived from
// the spec. A cache hit bypasses the collector entirely.
func WithCache(c *cache.Cache[[]models.Series]) Option {
	return func(e *Engine) { e.cache = c }
}

// WithTelemetry attaches Prometheus instrumentation.
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFetchTimeout bounds each collector fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithConcurrency caps how many pipelines ExecuteAll runs at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates a query engine over the given collector.
func New(c collector.Collector, opts ...Option) *Engine {
	e := &Engine{
		collector:    c,
		fetchTimeout: defaultFetchTimeout,
		concurrency:  defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one fetch-align-group-reduce pipeline. A malformed spec
// returns a validation error without touching the collector. A collector
// failure returns an empty result alongside the error; callers treat it
// as recoverable. A successful fetch matching no samples returns an
// empty series list and no error.
func (e *Engine) Execute(ctx context.Context, spec models.QuerySpec) ([]models.Series, error) {
	start := time.Now()

	if err := spec.Validate(); err != nil {
		e.metrics.ObserveQuery(telemetry.ResultInvalidSpec, time.Since(start))
		return nil, errors.WrapValidationError("execute_query", err)
	}

	cacheKey := spec.CacheKey()
	if e.cache != nil {
		if series, ok := e.cache.Get(cacheNamespace, cacheKey); ok {
			e.metrics.RecordCacheHit()
			e.metrics.ObserveQuery(telemetry.ResultSuccess, time.Since(start))
			log.Debug().Str("key", cacheKey).Msg("query served from cache")
			return cloneSeriesSlice(series), nil
		}
		e.metrics.RecordCacheMiss()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	samples, err := e.collector.Fetch(fetchCtx, spec.Filter, spec.Interval())
	if err != nil {
		if stderrors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			err = errors.WrapTimeoutError("fetch_samples", spec.Filter, err)
		} else {
			var coreErr *errors.CoreError
			if !stderrors.As(err, &coreErr) {
				err = errors.WrapCollectorError("fetch_samples", spec.Filter, err)
			}
		}
		e.metrics.ObserveQuery(telemetry.ResultCollectorError, time.Since(start))
		log.Warn().Err(err).Str("filter", spec.Filter).Msg("collector fetch failed, returning empty result")
		return []models.Series{}, err
	}

	result := process(samples, spec)

	if e.cache != nil {
		e.cache.Set(cacheNamespace, cacheKey, cloneSeriesSlice(result))
	}
	e.metrics.ObserveQuery(telemetry.ResultSuccess, time.Since(start))
	log.Debug().
		Str("filter", spec.Filter).
		Int("samples", len(samples)).
		Int("series", len(result)).
		Dur("duration", time.Since(start)).
		Msg("query executed")

	return result, nil
}

// process aligns, groups and reduces fetched samples per the spec.
func process(samples []models.Sample, spec models.QuerySpec) []models.Series {
	raw := partitionSeries(samples)

	aligned := make([]models.Series, 0, len(raw))
	for _, rs := range raw {
		points := alignSeries(rs.samples, spec)
		if len(points) == 0 {
			continue
		}
		aligned = append(aligned, models.Series{Labels: rs.labels, Points: points})
	}

	if spec.Reducer == models.ReduceNone {
		sortSeries(aligned)
		return aligned
	}

	groups := groupSeries(aligned, spec.GroupByFields)
	reduced := make([]models.Series, 0, len(groups))
	for _, group := range groups {
		s := crossReduce(group, spec.Reducer, spec.GroupByFields)
		if len(s.Points) > 0 {
			reduced = append(reduced, s)
		}
	}
	sortSeries(reduced)
	return reduced
}

// sortSeries orders series by canonical label signature so repeated
// executions of an identical spec yield identical output.
func sortSeries(series []models.Series) {
	sort.Slice(series, func(i, j int) bool {
		return series[i].LabelSignature() < series[j].LabelSignature()
	})
}

// cloneSeriesSlice deep-copies series so cached values never alias
// caller-visible slices or maps.
func cloneSeriesSlice(series []models.Series) []models.Series {
	out := make([]models.Series, len(series))
	for i, s := range series {
		labels := make(map[string]string, len(s.Labels))
		for k, v := range s.Labels {
			labels[k] = v
		}
		points := make([]models.AlignedPoint, len(s.Points))
		copy(points, s.Points)
		out[i] = models.Series{Labels: labels, Points: points}
	}
	return out
}

// Result pairs one spec of a batch with its outcome.
type Result struct {
	Spec   models.QuerySpec
	Series []models.Series
	Err    error
}

// ExecuteAll runs the given specs as independent concurrent pipelines
// and waits for all of them. One pipeline's failure never cancels its
// siblings; per-spec errors are reported in the matching Result slot.
// Results preserve the input order.
func (e *Engine) ExecuteAll(ctx context.Context, specs []models.QuerySpec) []Result {
	results := make([]Result, len(specs))

	g := &errgroup.Group{}
	g.SetLimit(e.concurrency)

	for i, spec := range specs {
		g.Go(func() error {
			series, err := e.Execute(ctx, spec)
			results[i] = Result{Spec: spec, Series: series, Err: err}
			return nil
		})
	}
	// Workers never return errors; Wait only serves as the barrier.
	_ = g.Wait()

	return results
}
