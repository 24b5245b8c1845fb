package alerts

import (
	"sort"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog/log"

	"github.com/rafique586/cloudence/internal/models"
)

// frequencySaturation caps the frequency contribution to the priority
// score: at or beyond this many occurrences the multiplier maxes out.
const frequencySaturation = 100

// Prioritizer scores, deduplicates and orders alert batches before
// delivery. Service criticality multipliers may use wildcard patterns
// (e.g. "payments-*"); the first matching pattern wins and unmatched
// services default to 1.0.
type Prioritizer struct {
	criticality      map[string]float64
	criticalityOrder []string
}

// NewPrioritizer creates a prioritizer with the given service
// criticality table. A nil table means every service multiplies by 1.0.
func NewPrioritizer(serviceCriticality map[string]float64) *Prioritizer {
	p := &Prioritizer{criticality: make(map[string]float64, len(serviceCriticality))}
	for pattern, mult := range serviceCriticality {
		p.criticality[pattern] = mult
		p.criticalityOrder = append(p.criticalityOrder, pattern)
	}
	// Deterministic pattern precedence regardless of map iteration order.
	sort.Strings(p.criticalityOrder)
	return p
}

// Score computes the delivery priority of one event:
// severity weight × (1 + impact) × (1 + min(frequency/100, 1)) ×
// service criticality.
func (p *Prioritizer) Score(event models.AlertEvent) float64 {
	score := event.Severity.Weight()

	if event.ImpactScore > 0 {
		score *= 1 + event.ImpactScore
	}
	if event.Frequency > 0 {
		ratio := float64(event.Frequency) / frequencySaturation
		if ratio > 1 {
			ratio = 1
		}
		score *= 1 + ratio
	}
	score *= p.criticalityMultiplier(event.Service)

	return score
}

func (p *Prioritizer) criticalityMultiplier(service string) float64 {
	if service == "" {
		return 1.0
	}
	if mult, ok := p.criticality[service]; ok {
		return mult
	}
	for _, pattern := range p.criticalityOrder {
		if wildcard.Match(pattern, service) {
			return p.criticality[pattern]
		}
	}
	return 1.0
}

// PrioritizeAndDedupe deduplicates a batch by (metric, service,
// severity) — keeping the first occurrence per key — and orders the
// survivors by descending score, breaking ties by most recent fired_at.
// The input slice is not modified.
func (p *Prioritizer) PrioritizeAndDedupe(events []models.AlertEvent) []models.AlertEvent {
	seen := make(map[string]struct{}, len(events))
	unique := make([]models.AlertEvent, 0, len(events))
	for _, e := range events {
		key := e.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, e)
	}
	if dropped := len(events) - len(unique); dropped > 0 {
		log.Debug().Int("dropped", dropped).Int("kept", len(unique)).Msg("deduplicated alert batch")
	}

	scores := make([]float64, len(unique))
	for i, e := range unique {
		scores[i] = p.Score(e)
	}

	order := make([]int, len(unique))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		return unique[i].FiredAt.After(unique[j].FiredAt)
	})

	out := make([]models.AlertEvent, len(unique))
	for pos, i := range order {
		out[pos] = unique[i]
	}
	return out
}
