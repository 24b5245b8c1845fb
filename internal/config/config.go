// Package config loads the cloudence runtime configuration from YAML
// with CLOUDENCE_* environment overrides. The rest of the system only
// ever receives plain structs from here.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rafique586/cloudence/internal/models"
	"github.com/rafique586/cloudence/internal/notifications"
)

// Duration wraps time.Duration with YAML support for "30s" style values.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// QueryConfig describes one query the poll loop runs every interval.
// Start/end are derived at execution time from the lookback window.
type QueryConfig struct {
	Name            string             `yaml:"name"`
	Filter          string             `yaml:"filter"`
	Lookback        Duration           `yaml:"lookback"`
	AlignmentPeriod Duration           `yaml:"alignment_period"`
	Aligner         models.AlignerKind `yaml:"aligner"`
	Reducer         models.ReducerKind `yaml:"reducer,omitempty"`
	GroupByFields   []string           `yaml:"group_by,omitempty"`
}

// Spec materializes the query spec for the window ending at now.
func (q QueryConfig) Spec(now time.Time) models.QuerySpec {
	return models.QuerySpec{
		Filter:          q.Filter,
		Start:           now.Add(-q.Lookback.Std()),
		End:             now,
		AlignmentPeriod: q.AlignmentPeriod.Std(),
		Aligner:         q.Aligner,
		Reducer:         q.Reducer,
		GroupByFields:   q.GroupByFields,
	}
}

// RuleConfig is the YAML shape of an alert rule.
type RuleConfig struct {
	Metric      string            `yaml:"metric"`
	Threshold   float64           `yaml:"threshold"`
	Comparator  models.Comparator `yaml:"comparator"`
	Window      Duration          `yaml:"window,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Severity    models.Severity   `yaml:"severity,omitempty"`
	Service     string            `yaml:"service,omitempty"`
}

// Rule converts to the model type consumed by the alert engine.
func (r RuleConfig) Rule() models.AlertRule {
	return models.AlertRule{
		MetricName:  r.Metric,
		Threshold:   r.Threshold,
		Comparator:  r.Comparator,
		Window:      r.Window.Std(),
		Description: r.Description,
		Severity:    r.Severity,
		Service:     r.Service,
	}
}

// WebhookChannelConfig is the YAML shape of a webhook delivery target.
type WebhookChannelConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
}

// Webhook converts to the notifications channel config.
func (w WebhookChannelConfig) Webhook() notifications.WebhookConfig {
	return notifications.WebhookConfig{
		Name:    w.Name,
		URL:     w.URL,
		Method:  w.Method,
		Headers: w.Headers,
		Timeout: w.Timeout.Std(),
	}
}

// LogConfig controls logger initialization.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Config is the full runtime configuration.
type Config struct {
	ListenAddr   string   `yaml:"listen_addr,omitempty"`
	PollInterval Duration `yaml:"poll_interval,omitempty"`
	CacheTTL     Duration `yaml:"cache_ttl,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`

	Queries            []QueryConfig          `yaml:"queries,omitempty"`
	Rules              []RuleConfig           `yaml:"rules,omitempty"`
	Webhooks           []WebhookChannelConfig `yaml:"webhooks,omitempty"`
	ServiceCriticality map[string]float64     `yaml:"service_criticality,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr:   ":7656",
		PollInterval: Duration(60 * time.Second),
		CacheTTL:     Duration(5 * time.Minute),
		Log:          LogConfig{Level: "info", Format: "auto"},
	}
}

// Load reads the YAML file at path, fills defaults and applies
// CLOUDENCE_* environment overrides. An empty path yields the defaults
// with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLOUDENCE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CLOUDENCE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CLOUDENCE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("CLOUDENCE_POLL_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			c.PollInterval = Duration(parsed)
		}
	}
	if v := os.Getenv("CLOUDENCE_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			c.CacheTTL = Duration(parsed)
		}
	}
}

// Validate checks the parts of the configuration the core cannot check
// later (rule shapes, query windows, webhook targets).
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	for i, q := range c.Queries {
		if strings.TrimSpace(q.Name) == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if q.Lookback <= 0 {
			return fmt.Errorf("queries[%d] %q: lookback must be positive", i, q.Name)
		}
		if q.AlignmentPeriod <= 0 {
			return fmt.Errorf("queries[%d] %q: alignment_period must be positive", i, q.Name)
		}
	}

	for i, r := range c.Rules {
		if strings.TrimSpace(r.Metric) == "" {
			return fmt.Errorf("rules[%d]: metric is required", i)
		}
		if !r.Comparator.Valid() {
			return fmt.Errorf("rules[%d] %q: unknown comparator %q", i, r.Metric, r.Comparator)
		}
	}

	for i, w := range c.Webhooks {
		if strings.TrimSpace(w.Name) == "" {
			return fmt.Errorf("webhooks[%d]: name is required", i)
		}
		if strings.TrimSpace(w.URL) == "" {
			return fmt.Errorf("webhooks[%d] %q: url is required", i, w.Name)
		}
	}

	return nil
}
