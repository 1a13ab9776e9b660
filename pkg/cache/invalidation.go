// Package cache emits display-cache invalidation intents for the public
// pages of a stream. It does not cache anything itself: items, reviews and
// ratings are always read from storage.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// SecretHeader carries the shared revalidation secret.
const SecretHeader = "X-Revalidate-Secret"

// Intent asks the display layer to drop cached pages for a stream.
type Intent struct {
	Stream string   `json:"stream"`
	Paths  []string `json:"paths"`
	Reason string   `json:"reason,omitempty"`
	ItemID string   `json:"itemId,omitempty"`
}

// Invalidator delivers invalidation intents.
type Invalidator interface {
	Invalidate(ctx context.Context, intent Intent) error
}

// NoopInvalidator discards intents.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context, Intent) error { return nil }

// WebhookInvalidator POSTs each intent as JSON to a revalidation endpoint.
type WebhookInvalidator struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookInvalidator creates a WebhookInvalidator from cfg.
func NewWebhookInvalidator(cfg *InvalidationConfig, logger *slog.Logger) *WebhookInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookInvalidator{
		url:    cfg.RevalidateURL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (w *WebhookInvalidator) Invalidate(ctx context.Context, intent Intent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encoding invalidation intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building revalidate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set(SecretHeader, w.secret)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("revalidate request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revalidate endpoint returned %d", resp.StatusCode)
	}
	w.logger.Debug("cache invalidation delivered", "stream", intent.Stream, "reason", intent.Reason)
	return nil
}

// Recorder keeps every intent in memory. It is used by tests and by the
// server in dry-run mode.
type Recorder struct {
	mu      sync.Mutex
	intents []Intent
}

func (r *Recorder) Invalidate(_ context.Context, intent Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	return nil
}

// Intents returns a copy of the recorded intents.
func (r *Recorder) Intents() []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Intent(nil), r.intents...)
}

// Streams returns the stream of each recorded intent in order.
func (r *Recorder) Streams() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.intents))
	for i, in := range r.intents {
		out[i] = in.Stream
	}
	return out
}

// Reset drops all recorded intents.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = nil
}

// NewInvalidator returns a WebhookInvalidator when a URL is configured and
// a NoopInvalidator otherwise.
func NewInvalidator(cfg *InvalidationConfig, logger *slog.Logger) Invalidator {
	if cfg == nil || cfg.RevalidateURL == "" {
		return NoopInvalidator{}
	}
	return NewWebhookInvalidator(cfg, logger)
}
