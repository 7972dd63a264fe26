package videostream

import (
	"context"
	"log/slog"
)

// NoopNotifier is a no-operation implementation of Notifier
// Useful when messaging is disabled or for testing
type NoopNotifier struct{}

// NewNoopNotifier creates a new no-operation notifier
func NewNoopNotifier() Notifier {
	return &NoopNotifier{}
}

// Notify does nothing and returns nil
func (n *NoopNotifier) Notify(ctx context.Context, event AccessEvent) error {
	return nil
}

// Close does nothing and returns nil
func (n *NoopNotifier) Close() error {
	return nil
}

// LoggingNotifier logs access events instead of publishing them
type LoggingNotifier struct{}

// NewLoggingNotifier creates a notifier that writes each event to the default logger
func NewLoggingNotifier() Notifier {
	return &LoggingNotifier{}
}

func (n *LoggingNotifier) Notify(ctx context.Context, event AccessEvent) error {
	slog.InfoContext(ctx, "Access event", "video_id", event.VideoID, "event", event.Event)
	return nil
}

func (n *LoggingNotifier) Close() error {
	return nil
}
