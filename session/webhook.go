package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// EventType names a session lifecycle change.
type EventType string

const (
	EventConnected EventType = "session.connected"
	EventExpired   EventType = "session.expired"
)

// Event is the JSON body sent to the configured webhook URL.
type Event struct {
	Type      EventType `json:"type"`
	Session   Session   `json:"session"`
	Timestamp int64     `json:"timestamp"`
}

// WebhookSender delivers lifecycle events to an external HTTP endpoint with
// deduplication.
type WebhookSender struct {
	url    string
	seen   map[string]time.Time // event key -> first seen time (dedup)
	mu     sync.Mutex
	client *http.Client
	log    *slog.Logger
}

// seenTTL is the time-to-live for entries in the deduplication map.
const seenTTL = 10 * time.Minute

// NewWebhookSender creates a WebhookSender ready to POST events to url. If
// url is empty, Notify returns nil immediately.
func NewWebhookSender(url string, log *slog.Logger) *WebhookSender {
	return &WebhookSender{
		url:  url,
		seen: make(map[string]time.Time),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Notify posts evt to the webhook. Each (type, session) pair is delivered at
// most once within seenTTL.
func (w *WebhookSender) Notify(ctx context.Context, evt Event) error {
	if w.url == "" {
		return nil
	}

	key := string(evt.Type) + ":" + evt.Session.ID

	w.mu.Lock()
	w.cleanupSeenLocked()
	if _, ok := w.seen[key]; ok {
		w.mu.Unlock()
		w.log.Debug("webhook skipping duplicate event", "event", evt.Type, "id", evt.Session.ID)
		return nil
	}
	w.seen[key] = time.Now()
	w.mu.Unlock()

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("webhook marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Error("webhook delivery failed", "error", err, "event", evt.Type, "id", evt.Session.ID)
		return fmt.Errorf("webhook POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		w.log.Info("webhook delivered", "status", resp.StatusCode, "event", evt.Type, "id", evt.Session.ID)
	} else {
		w.log.Warn("webhook non-2xx response", "status", resp.StatusCode, "event", evt.Type, "id", evt.Session.ID)
	}
	return nil
}

// cleanupSeenLocked removes stale entries from the seen map. The caller MUST
// hold w.mu.
func (w *WebhookSender) cleanupSeenLocked() {
	cutoff := time.Now().Add(-seenTTL)
	for key, t := range w.seen {
		if t.Before(cutoff) {
			delete(w.seen, key)
		}
	}
}
