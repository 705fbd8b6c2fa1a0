// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/cache"
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/models"
	"github.com/tomtom215/vigil/internal/transport"
)

// Store is the slice of the database the engine persists alerts through.
type Store interface {
	InsertAlert(ctx context.Context, alert *models.Alert) error
}

// KeywordSource supplies the current trigger words. The settings provider
// implements it; its TTL cache makes the per-message read cheap.
type KeywordSource interface {
	AlertKeywords(ctx context.Context) []string
}

// Notifier delivers triggered alerts to an external system.
type Notifier interface {
	// Send delivers one alert. The context carries the engine's delivery
	// timeout.
	Send(ctx context.Context, alert *models.Alert) error

	// Name identifies the notifier in logs.
	Name() string

	// Enabled reports whether the notifier should receive alerts.
	Enabled() bool
}

// EngineConfig holds alert engine tuning.
type EngineConfig struct {
	// DedupWindow is how long a (session, keyword) pair stays suppressed
	// after a hit.
	DedupWindow time.Duration

	// DedupCapacity bounds the dedup window's memory.
	DedupCapacity int

	// NotifyTimeout caps a single notifier delivery.
	NotifyTimeout time.Duration
}

// DefaultEngineConfig returns production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DedupWindow:   5 * time.Minute,
		DedupCapacity: 4096,
		NotifyTimeout: 15 * time.Second,
	}
}

// Engine consumes chat events from the bus and raises keyword alerts.
//
// The matcher and its fingerprint are touched only by the Run loop, which
// is the single consumer; only the notifier list is locked, because
// registration may race the loop.
type Engine struct {
	store  Store
	source KeywordSource
	bus    *eventbus.Bus
	cfg    EngineConfig

	matcher     *cache.AhoCorasick
	fingerprint string
	dedup       *cache.LRUCache

	mu        sync.RWMutex
	notifiers []Notifier

	ready     chan struct{}
	readyOnce sync.Once
}

// NewEngine creates an alert engine over the given store, keyword source,
// and bus. Call RegisterNotifier for each delivery target, then Run.
func NewEngine(store Store, source KeywordSource, bus *eventbus.Bus, cfg EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaults.DedupWindow
	}
	if cfg.DedupCapacity <= 0 {
		cfg.DedupCapacity = defaults.DedupCapacity
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaults.NotifyTimeout
	}

	return &Engine{
		store:   store,
		source:  source,
		bus:     bus,
		cfg:     cfg,
		matcher: cache.NewAhoCorasick(),
		dedup:   cache.NewLRUCache(cfg.DedupCapacity, cfg.DedupWindow),
		ready:   make(chan struct{}),
	}
}

// RegisterNotifier adds a delivery target for triggered alerts.
func (e *Engine) RegisterNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.notifiers = append(e.notifiers, n)
	logging.Info().Str("component", "alerts").Str("notifier", n.Name()).Msg("Registered notifier")
}

// Run subscribes to the live event topic and processes chat messages until
// the context is canceled or the bus closes. It blocks, returning ctx.Err()
// on cancellation and nil on bus close, so it slots under the supervision
// tree as-is.
func (e *Engine) Run(ctx context.Context) error {
	msgs, err := e.bus.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to live events: %w", err)
	}
	e.readyOnce.Do(func() { close(e.ready) })

	logging.Info().
		Str("component", "alerts").
		Int("notifiers", e.notifierCount()).
		Msg("Alert engine started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "alerts").Msg("Alert engine stopping")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				// The subscriber channel closes on bus close and on context
				// cancellation; report whichever happened.
				logging.Info().Str("component", "alerts").Msg("Alert engine stopping")
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			e.handleMessage(ctx, msg)
		}
	}
}

// handleMessage filters for chat events and acks every message exactly
// once. The type check rides on message metadata so non-chat traffic is
// skipped without unmarshaling.
func (e *Engine) handleMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	if msg.Metadata.Get(eventbus.MetadataEventType) != string(transport.EventChat) {
		return
	}

	env, err := eventbus.DeserializeEnvelope(msg.Payload)
	if err != nil {
		logging.Warn().Str("component", "alerts").Err(err).Msg("Dropping undecodable event envelope")
		return
	}

	e.processChat(ctx, env)
}

func (e *Engine) processChat(ctx context.Context, env *eventbus.Envelope) {
	e.refreshKeywords(ctx)
	if e.matcher.PatternCount() == 0 {
		return
	}

	var chat transport.ChatPayload
	if err := json.Unmarshal(env.Event.Payload, &chat); err != nil {
		logging.Debug().Str("handle", env.Handle).Err(err).Msg("Chat payload did not decode, skipping")
		return
	}
	if chat.Comment == "" {
		return
	}

	for _, match := range e.matcher.Search(chat.Comment) {
		key := env.SessionID.String() + ":" + strings.ToLower(match.Pattern)
		if e.dedup.IsDuplicate(key) {
			metrics.RecordAlertDeduplicated()
			continue
		}

		e.raise(ctx, &models.Alert{
			ID:          uuid.New(),
			SessionID:   env.SessionID,
			Handle:      env.Handle,
			Keyword:     match.Pattern,
			Message:     chat.Comment,
			TriggeredAt: triggeredAt(env.Event.OccurredAt),
		})
	}
}

// refreshKeywords rebuilds the automaton when the configured trigger words
// change. The rebuild costs O(total pattern length), so it only runs when
// the list fingerprint moves.
func (e *Engine) refreshKeywords(ctx context.Context) {
	keywords := e.source.AlertKeywords(ctx)
	fp := strings.Join(keywords, "\n")
	if fp == e.fingerprint {
		return
	}

	e.matcher.Clear()
	e.matcher.AddPatterns(keywords, nil)
	e.matcher.Build()
	e.fingerprint = fp

	logging.Info().
		Str("component", "alerts").
		Int("keywords", e.matcher.PatternCount()).
		Msg("Alert keywords rebuilt")
}

// raise persists the alert, announces it on the notification topic, and
// fans it out to notifiers. A store failure is logged but does not stop
// delivery; the alert already happened.
func (e *Engine) raise(ctx context.Context, alert *models.Alert) {
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		logging.Error().
			Str("component", "alerts").
			Str("handle", alert.Handle).
			Str("keyword", alert.Keyword).
			Err(err).
			Msg("Failed to persist alert")
	}

	metrics.RecordAlert(alert.Keyword)
	logging.Info().
		Str("component", "alerts").
		Str("handle", alert.Handle).
		Str("keyword", alert.Keyword).
		Msg("Keyword alert triggered")

	e.notifyBus(alert)
	e.dispatch(alert)
}

// notifyBus publishes the hit on the notification topic; the websocket hub
// bridge relays it to connected dashboards.
func (e *Engine) notifyBus(alert *models.Alert) {
	n := eventbus.NewNotification(eventbus.KindAlertTriggered, alert.Handle, alert.SessionID,
		alertText(alert.Keyword, alert.Message))
	if err := e.bus.PublishNotification(n); err != nil && !errors.Is(err, eventbus.ErrBusClosed) {
		logging.Warn().Str("handle", alert.Handle).Err(err).Msg("Alert notification publish failed")
	}
}

// dispatch fans the alert out to enabled notifiers. Each send runs in its
// own goroutine with a fresh timeout context: a slow webhook must not stall
// the consume loop, and the loop's context may be gone before the delivery
// finishes.
func (e *Engine) dispatch(alert *models.Alert) {
	e.mu.RLock()
	notifiers := make([]Notifier, 0, len(e.notifiers))
	for _, n := range e.notifiers {
		if n.Enabled() {
			notifiers = append(notifiers, n)
		}
	}
	e.mu.RUnlock()

	for _, n := range notifiers {
		go func(n Notifier) {
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NotifyTimeout)
			defer cancel()

			if err := n.Send(ctx, alert); err != nil {
				logging.Error().
					Str("component", "alerts").
					Str("notifier", n.Name()).
					Str("keyword", alert.Keyword).
					Err(err).
					Msg("Alert delivery failed")
			}
		}(n)
	}
}

func (e *Engine) notifierCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.notifiers)
}

// alertText formats the notification body, truncating long chat messages.
func alertText(keyword, comment string) string {
	const maxRunes = 120
	if runes := []rune(comment); len(runes) > maxRunes {
		comment = string(runes[:maxRunes]) + "..."
	}
	return fmt.Sprintf("keyword %q matched: %s", keyword, comment)
}

func triggeredAt(occurred time.Time) time.Time {
	if occurred.IsZero() {
		return time.Now().UTC()
	}
	return occurred
}
