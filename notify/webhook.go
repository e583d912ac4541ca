package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resty.dev/v3"
)

var _ Notifier = &Webhook{}

// Webhook posts payloads to an external sink (a spreadsheet ingest script in
// the reference deployment). The response body is never read; the body is
// sent as text/plain so the sink accepts it without a CORS preflight.
type Webhook struct {
	client *resty.Client
	url    string
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

func (w *Webhook) Notify(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	_, err = w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(body).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to post notification: %w", err)
	}

	return nil
}

func (w *Webhook) Close() error {
	return w.client.Close()
}
