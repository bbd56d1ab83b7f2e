// Package alert provides operator notification for critical pipeline
// failures. Notifications are fire-and-forget: a failed alert is logged and
// never propagated into the business transaction that raised it.
package alert

import (
	"context"
	"log/slog"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Alert(ctx context.Context, title, message string, severity Severity)
}

// SlogNotifier writes alerts to the structured log. It is the default sink
// when no external channel is configured.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a Notifier backed by the given logger.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger}
}

// Alert logs the alert at a level matching its severity.
func (n *SlogNotifier) Alert(ctx context.Context, title, message string, severity Severity) {
	if n.logger == nil {
		return
	}

	attrs := []any{
		slog.String("title", title),
		slog.String("severity", string(severity)),
	}

	switch severity {
	case SeverityCritical:
		n.logger.ErrorContext(ctx, message, attrs...)
	case SeverityWarning:
		n.logger.WarnContext(ctx, message, attrs...)
	default:
		n.logger.InfoContext(ctx, message, attrs...)
	}
}

// NoopNotifier discards alerts. Useful in tests.
type NoopNotifier struct{}

// Alert does nothing.
func (NoopNotifier) Alert(context.Context, string, string, Severity) {}
