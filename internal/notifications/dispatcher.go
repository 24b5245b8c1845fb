package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rafique586/cloudence/internal/models"
	"github.com/rafique586/cloudence/internal/telemetry"
)

// DefaultMaxDeliveries bounds the retained delivery records.
const DefaultMaxDeliveries = 1000

var nowFn = time.Now

// DeliveryRecord captures one delivery attempt to one channel.
type DeliveryRecord struct {
	ID        string        `json:"id"`
	EventID   string        `json:"event_id"`
	Channel   string        `json:"channel"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Dispatcher fans an alert event out to every registered channel. A
// failing channel never blocks or fails the others.
type Dispatcher struct {
	mu            sync.RWMutex
	channels      []Channel
	deliveries    []DeliveryRecord
	maxDeliveries int
	metrics       *telemetry.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxDeliveries overrides the delivery record bound.
func WithMaxDeliveries(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxDeliveries = n
		}
	}
}

// WithDispatcherTelemetry attaches Prometheus instrumentation.
func WithDispatcherTelemetry(m *telemetry.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a dispatcher with no channels registered.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{maxDeliveries: DefaultMaxDeliveries}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a delivery channel.
func (d *Dispatcher) Register(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, ch)
}

// Dispatch delivers the event to every channel concurrently and returns
// the number of channels that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.AlertEvent) int {
	d.mu.RLock()
	channels := make([]Channel, len(d.channels))
	copy(channels, d.channels)
	d.mu.RUnlock()

	if len(channels) == 0 {
		return 0
	}

	var failed sync.Map
	var g errgroup.Group
	for _, ch := range channels {
		g.Go(func() error {
			started := time.Now()
			err := ch.Send(ctx, event)
			d.record(ch.Name(), event, time.Since(started), err)
			d.metrics.RecordNotification(ch.Name(), err == nil)
			if err != nil {
				failed.Store(ch.Name(), struct{}{})
				log.Error().
					Err(err).
					Str("channel", ch.Name()).
					Str("event", event.ID).
					Msg("notification delivery failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	failed.Range(func(_, _ any) bool {
		failures++
		return true
	})
	return failures
}

// DispatchBatch delivers an ordered batch of events sequentially so
// higher priority events reach the channels first.
func (d *Dispatcher) DispatchBatch(ctx context.Context, events []models.AlertEvent) int {
	failures := 0
	for i := range events {
		failures += d.Dispatch(ctx, &events[i])
	}
	return failures
}

func (d *Dispatcher) record(channel string, event *models.AlertEvent, took time.Duration, sendErr error) {
	rec := DeliveryRecord{
		ID:        ulid.Make().String(),
		EventID:   event.ID,
		Channel:   channel,
		Timestamp: nowFn(),
		Duration:  took,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, rec)
	if len(d.deliveries) > d.maxDeliveries {
		overflow := len(d.deliveries) - d.maxDeliveries
		d.deliveries = append(d.deliveries[:0:0], d.deliveries[overflow:]...)
	}
}

// Deliveries returns the most recent delivery records, newest first, up
// to limit (limit <= 0 returns everything retained).
func (d *Dispatcher) Deliveries(limit int) []DeliveryRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 || limit > len(d.deliveries) {
		limit = len(d.deliveries)
	}
	out := make([]DeliveryRecord, 0, limit)
	for i := len(d.deliveries) - 1; i >= len(d.deliveries)-limit; i-- {
		out = append(out, d.deliveries[i])
	}
	return out
}
