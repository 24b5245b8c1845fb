package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	coreerrors "github.com/rafique586/cloudence/internal/errors"
	"github.com/rafique586/cloudence/internal/models"
)

const userAgent = "Cloudence/1.0"

// WebhookConfig configures a JSON webhook delivery target.
type WebhookConfig struct {
	Name    string
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
}

// Webhook posts alert events as JSON to an HTTP endpoint.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhook creates a webhook channel. Timeout defaults to 30s.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *Webhook) Name() string { return w.cfg.Name }

// webhookPayload is the wire shape posted to the endpoint.
type webhookPayload struct {
	ID          string  `json:"id"`
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Comparator  string  `json:"comparator"`
	Severity    string  `json:"severity"`
	Service     string  `json:"service,omitempty"`
	Description string  `json:"description,omitempty"`
	FiredAt     string  `json:"fired_at"`
	Text        string  `json:"text"`
}

// Send posts the event. Non-2xx responses count as delivery failures.
func (w *Webhook) Send(ctx context.Context, event *models.AlertEvent) error {
	payload := webhookPayload{
		ID:          event.ID,
		Metric:      event.Metric,
		Value:       event.Value,
		Threshold:   event.Threshold,
		Comparator:  string(event.Comparator),
		Severity:    string(event.Severity),
		Service:     event.Service,
		Description: event.Description,
		FiredAt:     event.FiredAt.UTC().Format(time.RFC3339),
		Text: fmt.Sprintf("[%s] %s = %v (threshold %s %v)",
			event.Severity, event.Metric, event.Value, event.Comparator, event.Threshold),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return coreerrors.WrapNotificationError("webhook.send", w.cfg.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, w.cfg.Method, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return coreerrors.WrapNotificationError("webhook.send", w.cfg.Name, err)
	}
	for key, value := range w.cfg.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return coreerrors.WrapNotificationError("webhook.send", w.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().
			Str("webhook", w.cfg.Name).
			Int("status", resp.StatusCode).
			Msg("webhook delivery rejected")
		return coreerrors.WrapNotificationError("webhook.send", w.cfg.Name,
			fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}
