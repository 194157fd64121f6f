// Package notify delivers fire-and-forget user notifications. Delivery
// failures are logged and never bubble up into the state transition
// that triggered them.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

const (
	KindBookingCreated  = "booking_created"
	KindPaymentReceived = "payment_received"
	KindEventCompleted  = "event_completed"
	KindFundsReleased   = "funds_released"
	KindBookingRefunded = "booking_refunded"
	KindDisputeOpened   = "dispute_opened"
	KindDisputeResolved = "dispute_resolved"
)

type Notification struct {
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	BookingID uuid.UUID `json:"booking_id"`
}

// Gateway sends one notification. Implementations must be safe to call
// after a transaction has committed; returning an error only results
// in a log line.
type Gateway interface {
	Notify(ctx context.Context, n Notification) error
}

// Send pushes a notification through the gateway, logging the failure
// if there is one. This is the only way services emit notifications,
// so a broken gateway can never roll a transition back.
func Send(ctx context.Context, g Gateway, logger *slog.Logger, n Notification) {
	if g == nil {
		return
	}
	if err := g.Notify(ctx, n); err != nil {
		logger.Error("notification delivery failed",
			"kind", n.Kind,
			"user_id", n.UserID,
			"booking_id", n.BookingID,
			"error", err,
		)
	}
}

// LogGateway writes notifications to the log instead of a broker.
// Used when no AMQP URL is configured.
type LogGateway struct {
	Logger *slog.Logger
}

func (g *LogGateway) Notify(_ context.Context, n Notification) error {
	g.Logger.Info("notification",
		"kind", n.Kind,
		"user_id", n.UserID,
		"booking_id", n.BookingID,
		"title", n.Title,
	)
	return nil
}
