// Package alerts implements threshold-based alert evaluation and the
// prioritization/deduplication applied to alert batches before delivery.
package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rafique586/cloudence/internal/models"
	"github.com/rafique586/cloudence/internal/telemetry"
)

// DefaultMaxHistory bounds the append-only event history; the oldest
// event is evicted once the bound is reached.
const DefaultMaxHistory = 1000

// nowFn is overridable in tests.
var nowFn = time.Now

// metricState tracks the evaluation state of one metric. Its lock
// serializes evaluations for that metric; distinct metrics evaluate
// concurrently.
type metricState struct {
	mu     sync.Mutex
	rule   models.AlertRule
	firing bool
}

// AlertCallback is invoked once per qualifying evaluation. Suppression
// of repeat notifications is a downstream concern (see Prioritizer).
type AlertCallback func(event *models.AlertEvent)

// Engine evaluates metric values against registered rules and keeps a
// bounded firing history. The engine is owned by the caller and carries
// no package-level state.
type Engine struct {
	mu         sync.RWMutex
	states     map[string]*metricState
	history    []*models.AlertEvent
	maxHistory int
	callback   AlertCallback
	metrics    *telemetry.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxHistory overrides the history bound.
func WithMaxHistory(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxHistory = n
		}
	}
}

// WithEngineTelemetry attaches Prometheus instrumentation.
func WithEngineTelemetry(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an alert engine with no rules registered.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		states:     make(map[string]*metricState),
		maxHistory: DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetAlertCallback registers the notification hook. Passing nil clears it.
func (e *Engine) SetAlertCallback(cb AlertCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callback = cb
}

// RegisterRule installs a rule for its metric name, replacing any prior
// rule for that metric entirely.
func (e *Engine) RegisterRule(rule models.AlertRule) {
	if rule.Severity == "" {
		rule.Severity = models.SeverityHigh
	}

	e.mu.Lock()
	state, ok := e.states[rule.MetricName]
	if !ok {
		state = &metricState{}
		e.states[rule.MetricName] = state
	}
	e.mu.Unlock()

	state.mu.Lock()
	replaced := state.rule.MetricName != ""
	state.rule = rule
	// A replaced rule starts armed regardless of the old rule's state.
	state.firing = false
	state.mu.Unlock()

	log.Info().
		Str("metric", rule.MetricName).
		Float64("threshold", rule.Threshold).
		Str("comparator", string(rule.Comparator)).
		Bool("replaced", replaced).
		Msg("alert rule registered")
}

// ReplaceRules swaps the whole rule set: metrics absent from the new
// set lose their rule (and firing state), present ones go through the
// per-metric replace semantics of RegisterRule.
func (e *Engine) ReplaceRules(rules []models.AlertRule) {
	e.mu.Lock()
	e.states = make(map[string]*metricState, len(rules))
	e.mu.Unlock()

	for _, rule := range rules {
		e.RegisterRule(rule)
	}
	log.Info().Int("rules", len(rules)).Msg("alert rule set replaced")
}

// Rule returns the registered rule for a metric, if any.
func (e *Engine) Rule(metricName string) (models.AlertRule, bool) {
	e.mu.RLock()
	state, ok := e.states[metricName]
	e.mu.RUnlock()
	if !ok {
		return models.AlertRule{}, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.rule.MetricName == "" {
		return models.AlertRule{}, false
	}
	return state.rule, true
}

// Evaluate checks value against the metric's rule. It returns a new
// AlertEvent when the threshold condition holds, nil otherwise.
// Evaluating a metric with no registered rule is a no-op. Qualifying
// evaluations invoke the callback once per call; a non-qualifying value
// returns the metric to the armed state.
func (e *Engine) Evaluate(metricName string, value float64) *models.AlertEvent {
	e.mu.RLock()
	state, ok := e.states[metricName]
	cb := e.callback
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	state.mu.Lock()
	rule := state.rule
	if rule.MetricName == "" {
		state.mu.Unlock()
		return nil
	}

	if !rule.Comparator.Matches(value, rule.Threshold) {
		if state.firing {
			log.Debug().Str("metric", metricName).Float64("value", value).Msg("alert condition cleared")
		}
		state.firing = false
		state.mu.Unlock()
		return nil
	}
	state.firing = true
	state.mu.Unlock()

	event := &models.AlertEvent{
		ID:          uuid.New().String(),
		Metric:      metricName,
		Value:       value,
		Threshold:   rule.Threshold,
		Comparator:  rule.Comparator,
		FiredAt:     nowFn(),
		Description: rule.Description,
		Severity:    rule.Severity,
		Service:     rule.Service,
	}

	e.appendHistory(event)
	e.metrics.RecordAlertFired(string(event.Severity))

	log.Warn().
		Str("metric", metricName).
		Float64("value", value).
		Float64("threshold", rule.Threshold).
		Str("severity", string(event.Severity)).
		Msg("alert fired")

	if cb != nil {
		cb(event.Clone())
	}
	return event
}

// appendHistory records the event, evicting the oldest entry past the
// bound.
func (e *Engine) appendHistory(event *models.AlertEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, event.Clone())
	if len(e.history) > e.maxHistory {
		overflow := len(e.history) - e.maxHistory
		e.history = append(e.history[:0:0], e.history[overflow:]...)
	}
}

// History returns the most recent events, newest first, up to limit
// (limit <= 0 returns everything retained).
func (e *Engine) History(limit int) []models.AlertEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}
	out := make([]models.AlertEvent, 0, limit)
	for i := len(e.history) - 1; i >= len(e.history)-limit; i-- {
		out = append(out, *e.history[i])
	}
	return out
}

// Firing returns the metric names whose most recent evaluation qualified.
func (e *Engine) Firing() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var firing []string
	for name, state := range e.states {
		state.mu.Lock()
		if state.firing {
			firing = append(firing, name)
		}
		state.mu.Unlock()
	}
	return firing
}
