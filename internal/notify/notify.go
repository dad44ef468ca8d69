// Package notify delivers human-readable auction events to users. The
// engine only emits; transports (email, push, in-app inbox) live elsewhere.
package notify

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Kind classifies a notification.
type Kind string

const (
	KindOutbid Kind = "outbid"
	KindWon    Kind = "won"
	KindLost   Kind = "lost"
)

// Notification is a single message addressed to one user.
type Notification struct {
	UserID    string
	Kind      Kind
	ListingID string
	Title     string
	Amount    decimal.Decimal
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the log. It stands in for a real
// delivery channel in the worker and in demos.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	l.logger.InfoContext(ctx, "notification",
		slog.String("user_id", n.UserID),
		slog.String("kind", string(n.Kind)),
		slog.String("listing_id", n.ListingID),
		slog.String("title", n.Title),
		slog.String("amount", n.Amount.String()),
	)
}
