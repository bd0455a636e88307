package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WebhookSink POSTs delivered events to a downstream consumer (search
// indexer, notification service). Used by the worker's delivery handler; an
// empty URL disables it.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

// NewWebhookSink builds a sink with a traced HTTP client.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		URL: url,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Deliver posts the event as JSON. Non-2xx responses are errors so asynq
// retries the task.
func (s *WebhookSink) Deliver(ctx context.Context, event Event) error {
	if s == nil || s.URL == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", event.Topic)
	req.Header.Set("X-Event-ID", event.ID.String())

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver event %s: %w", event.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver event %s: unexpected status %d", event.ID, resp.StatusCode)
	}
	return nil
}
