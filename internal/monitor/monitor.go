// Package monitor runs the poll loop: execute the configured queries,
// evaluate the latest aligned values against the alert rules, and hand
// the prioritized batch to the notification dispatcher.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rafique586/cloudence/internal/alerts"
	"github.com/rafique586/cloudence/internal/cache"
	"github.com/rafique586/cloudence/internal/collector"
	"github.com/rafique586/cloudence/internal/config"
	"github.com/rafique586/cloudence/internal/models"
	"github.com/rafique586/cloudence/internal/notifications"
	"github.com/rafique586/cloudence/internal/query"
	"github.com/rafique586/cloudence/internal/telemetry"
)

var nowFn = time.Now

// Monitor owns the wired pipeline for one collector.
type Monitor struct {
	mu           sync.RWMutex
	queries      []config.QueryConfig
	pollInterval time.Duration
	prioritizer  *alerts.Prioritizer
	dispatcher   *notifications.Dispatcher

	engine   *query.Engine
	alerting *alerts.Engine
	cache    *cache.Cache[[]models.Series]
	cacheTTL time.Duration
	metrics  *telemetry.Metrics

	intervalCh chan time.Duration
	stopOnce   sync.Once
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// New wires the pipeline from configuration. The collector is the
// caller's; everything else is built here.
func New(col collector.Collector, cfg *config.Config, metrics *telemetry.Metrics) *Monitor {
	queryCache := cache.New[[]models.Series](cfg.CacheTTL.Std())
	m := &Monitor{
		cache:    queryCache,
		cacheTTL: cfg.CacheTTL.Std(),
		engine: query.New(col,
			query.WithCache(queryCache),
			query.WithTelemetry(metrics),
		),
		alerting:   alerts.NewEngine(alerts.WithEngineTelemetry(metrics)),
		metrics:    metrics,
		intervalCh: make(chan time.Duration, 1),
		stopChan:   make(chan struct{}),
	}
	m.Apply(cfg)
	return m
}

// Apply installs a configuration: rules, queries, criticality and
// webhook channels. Called at startup and on hot reload. Rules and
// webhook channels are rebuilt wholesale, so entries removed from the
// configuration stop applying.
func (m *Monitor) Apply(cfg *config.Config) {
	rules := make([]models.AlertRule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		rules = append(rules, rc.Rule())
	}
	m.alerting.ReplaceRules(rules)

	m.mu.Lock()
	prevInterval := m.pollInterval
	m.queries = append([]config.QueryConfig(nil), cfg.Queries...)
	m.pollInterval = cfg.PollInterval.Std()
	m.prioritizer = alerts.NewPrioritizer(cfg.ServiceCriticality)
	m.mu.Unlock()

	if newInterval := cfg.PollInterval.Std(); prevInterval != 0 && newInterval > 0 && newInterval != prevInterval {
		select {
		case <-m.intervalCh:
		default:
		}
		m.intervalCh <- newInterval
	}
	if ttl := cfg.CacheTTL.Std(); ttl != m.cacheTTL {
		log.Warn().
			Dur("configured", ttl).
			Dur("active", m.cacheTTL).
			Msg("cache_ttl changed; the query cache keeps its original TTL until restart")
	}

	m.rebuildChannels(cfg.Webhooks)
}

func (m *Monitor) rebuildChannels(webhooks []config.WebhookChannelConfig) {
	dispatcher := notifications.NewDispatcher(notifications.WithDispatcherTelemetry(m.metrics))
	for _, wc := range webhooks {
		dispatcher.Register(notifications.NewWebhook(wc.Webhook()))
	}

	m.mu.Lock()
	m.dispatcher = dispatcher
	m.mu.Unlock()
}

// Alerts exposes the alert engine (history, firing state).
func (m *Monitor) Alerts() *alerts.Engine { return m.alerting }

// Queries exposes the query engine for ad-hoc execution.
func (m *Monitor) Queries() *query.Engine { return m.engine }

// Start launches the poll loop. The first tick runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.RLock()
	interval := m.pollInterval
	m.mu.RUnlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.tick(ctx)
		for {
			select {
			case <-ticker.C:
				m.tick(ctx)
			case newInterval := <-m.intervalCh:
				ticker.Reset(newInterval)
				log.Info().Dur("interval", newInterval).Msg("poll interval updated")
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("poll loop started")
}

// Stop terminates the poll loop and waits for an in-flight tick.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()
}

// tick runs one poll cycle end to end.
func (m *Monitor) tick(ctx context.Context) {
	m.cache.Purge()

	m.mu.RLock()
	queries := m.queries
	prioritizer := m.prioritizer
	dispatcher := m.dispatcher
	m.mu.RUnlock()

	if len(queries) == 0 {
		return
	}

	now := nowFn()
	specs := make([]models.QuerySpec, len(queries))
	for i, q := range queries {
		specs[i] = q.Spec(now)
	}

	results := m.engine.ExecuteAll(ctx, specs)

	var fired []models.AlertEvent
	for i, result := range results {
		if result.Err != nil {
			log.Error().Err(result.Err).Str("query", queries[i].Name).Msg("query failed")
			continue
		}
		for _, series := range result.Series {
			metric, value, ok := latestValue(series)
			if !ok {
				continue
			}
			if event := m.alerting.Evaluate(metric, value); event != nil {
				fired = append(fired, *event)
			}
		}
	}

	if len(fired) == 0 {
		return
	}

	batch := prioritizer.PrioritizeAndDedupe(fired)
	failures := dispatcher.DispatchBatch(ctx, batch)
	log.Info().
		Int("fired", len(fired)).
		Int("delivered", len(batch)).
		Int("channel_failures", failures).
		Msg("poll cycle dispatched alerts")
}

// latestValue extracts the newest aligned value of a series together
// with the metric name it evaluates under.
func latestValue(series models.Series) (string, float64, bool) {
	if len(series.Points) == 0 {
		return "", 0, false
	}
	metric := series.Labels["metric"]
	if metric == "" {
		return "", 0, false
	}
	return metric, series.Points[len(series.Points)-1].Value, true
}
