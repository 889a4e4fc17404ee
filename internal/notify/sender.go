package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/screengrab/backend/internal/logging"
)

// ErrNotConfigured is returned by senders that are missing credentials.
var ErrNotConfigured = errors.New("notify: email provider not configured")

// Message is a rendered email ready for delivery.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NopSender drops messages, logging a warning so missing configuration is visible.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(ctx context.Context, msg Message) error {
	logging.FromContext(ctx).Warn("email provider not configured, skipping email",
		slog.String("subject", msg.Subject),
	)
	return nil
}
