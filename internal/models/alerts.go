package models

import (
	"strings"
	"time"
)

// Severity represents the urgency of an alert event.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Weight returns the base priority weight of the severity. Unknown
// severities weigh the same as INFO.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.8
	case SeverityMedium:
		return 0.6
	case SeverityLow:
		return 0.4
	default:
		return 0.2
	}
}

// ParseSeverity maps a string to a Severity, defaulting to INFO.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Comparator names the threshold comparison of an alert rule.
type Comparator string

const (
	CompareGT Comparator = "gt"
	CompareLT Comparator = "lt"
	// CompareEQ uses exact floating-point equality. Callers that need a
	// tolerance should not rely on eq.
	CompareEQ Comparator = "eq"
)

// Matches applies the comparison of value against threshold.
func (c Comparator) Matches(value, threshold float64) bool {
	switch c {
	case CompareGT:
		return value > threshold
	case CompareLT:
		return value < threshold
	case CompareEQ:
		return value == threshold
	}
	return false
}

// Valid reports whether the comparator is one of gt, lt, eq.
func (c Comparator) Valid() bool {
	return c == CompareGT || c == CompareLT || c == CompareEQ
}

// AlertRule is a threshold condition attached to a metric name. Rules are
// keyed uniquely by MetricName; registering a second rule for the same
// metric replaces the first.
type AlertRule struct {
	MetricName  string        `json:"metric_name"`
	Threshold   float64       `json:"threshold"`
	Comparator  Comparator    `json:"comparator"`
	Window      time.Duration `json:"window"` // reserved for windowed suppression, not evaluated
	Description string        `json:"description,omitempty"`
	Severity    Severity      `json:"severity,omitempty"` // defaults to HIGH when empty
	Service     string        `json:"service,omitempty"`
}

// AlertEvent is a materialized firing of a rule. Events are immutable
// once created.
type AlertEvent struct {
	ID          string     `json:"id"`
	Metric      string     `json:"metric"`
	Value       float64    `json:"value"`
	Threshold   float64    `json:"threshold"`
	Comparator  Comparator `json:"comparator"`
	FiredAt     time.Time  `json:"fired_at"`
	Description string     `json:"description,omitempty"`
	Severity    Severity   `json:"severity"`
	Service     string     `json:"service,omitempty"`
	Frequency   int        `json:"frequency,omitempty"`
	ImpactScore float64    `json:"impact_score,omitempty"`
}

// Clone returns a copy of the event safe to hand to other goroutines.
func (e *AlertEvent) Clone() *AlertEvent {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// DedupKey identifies events considered duplicates within one delivery
// batch: same metric (or pattern identity), service and severity.
func (e *AlertEvent) DedupKey() string {
	return e.Metric + "\x00" + e.Service + "\x00" + string(e.Severity)
}
