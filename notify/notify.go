// Package notify is the outbound registration notification sink.
// Delivery is best-effort and at-most-once: the pipeline fires one attempt,
// never reads the response, and never retries.
package notify

import (
	"context"

	"github.com/buildx-events/registration/wizard"
)

// Payload is the JSON body posted for a committed registration.
type Payload struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	TeamName string          `json:"teamName"`
	TeamSize int             `json:"teamSize"`
	Price    float64         `json:"price"`
	Members  []wizard.Member `json:"members"`
}

type Notifier interface {
	Notify(ctx context.Context, payload Payload) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, payload Payload) error {
	return nil
}
