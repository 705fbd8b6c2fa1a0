// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package alerts

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/models"
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// URL is the POST target. An empty URL disables the notifier.
	URL string

	// Timeout bounds a single HTTP delivery.
	Timeout time.Duration

	// MinInterval is the minimum spacing between deliveries. Zero disables
	// spacing.
	MinInterval time.Duration

	// Headers are extra request headers, e.g. an Authorization token.
	Headers map[string]string

	Enabled bool

	// Breaker tunes the delivery circuit breaker; zero fields take
	// DefaultBreakerConfig values.
	Breaker BreakerConfig
}

// WebhookPayload is the JSON body POSTed for each alert.
type WebhookPayload struct {
	Alert     *models.Alert `json:"alert"`
	EventType string        `json:"event_type"` // keyword_alert
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"` // vigil
}

// WebhookNotifier delivers alerts to an HTTP endpoint as JSON POSTs.
//
// Deliveries are spaced at least MinInterval apart and wrapped in a
// circuit breaker, so a dead endpoint degrades to cheap rejections instead
// of a queue of timed-out requests.
type WebhookNotifier struct {
	url         string
	headers     map[string]string
	minInterval time.Duration
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[any]

	mu       sync.Mutex
	enabled  bool
	lastSent time.Time
}

// NewWebhookNotifier creates a webhook notifier from the config.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "alert-webhook"
	}

	return &WebhookNotifier{
		url:         cfg.URL,
		headers:     headers,
		minInterval: cfg.MinInterval,
		enabled:     cfg.Enabled,
		breaker:     newBreaker(breakerCfg),
		client:      &http.Client{Timeout: timeout},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled reports whether the notifier has a target and is switched on.
func (n *WebhookNotifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled && n.url != ""
}

// SetEnabled switches the notifier on or off.
func (n *WebhookNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Send delivers one alert. It waits out the rate limit, honoring ctx, then
// POSTs through the circuit breaker. Status codes >= 400 count as failures.
func (n *WebhookNotifier) Send(ctx context.Context, alert *models.Alert) error {
	n.mu.Lock()
	enabled := n.enabled && n.url != ""
	lastSent := n.lastSent
	n.mu.Unlock()

	if !enabled {
		return nil
	}

	start := time.Now()

	if wait := n.minInterval - time.Since(lastSent); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			metrics.RecordWebhookDelivery("rate_limited", time.Since(start))
			return ctx.Err()
		}
	}

	_, err := n.breaker.Execute(func() (any, error) {
		return nil, n.post(ctx, alert)
	})
	duration := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordWebhookDelivery("delivered", duration)
		return nil
	case isBreakerRejection(err):
		metrics.RecordWebhookDelivery("breaker_open", duration)
		return fmt.Errorf("webhook circuit open: %w", err)
	default:
		metrics.RecordWebhookDelivery("failed", duration)
		return err
	}
}

func (n *WebhookNotifier) post(ctx context.Context, alert *models.Alert) error {
	body, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		EventType: "keyword_alert",
		Timestamp: time.Now().UTC(),
		Source:    "vigil",
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range n.headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	// The attempt reached the endpoint, so it counts against the spacing
	// even when the response is an error status.
	n.mu.Lock()
	n.lastSent = time.Now()
	n.mu.Unlock()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
