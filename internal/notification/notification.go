package notification

import (
	"context"
	"errors"
	"log/slog"
)

const (
	// KindOTP carries a one-time passcode to a customer's email address.
	KindOTP = "otp"
)

// ErrNoDestination is returned when a message has no recipient.
var ErrNoDestination = errors.New("notification requires a destination")

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers notifications to downstream systems. Implementations
// report failures as errors and never panic into the caller.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stand-in used when no mail transport is configured. It
// records that a message would have been sent without writing its body.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message envelope to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if message.Destination == "" {
		return ErrNoDestination
	}
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.Int("body_bytes", len(message.Body)),
	)
	return nil
}
