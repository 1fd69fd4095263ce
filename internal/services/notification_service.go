package services

import (
	"context"
	"time"

	"github.com/courtly/court-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingEvent names a booking lifecycle notification. It doubles as the
// message routing key.
type BookingEvent string

const (
	EventBookingCreated     BookingEvent = "booking.created"
	EventBookingConfirmed   BookingEvent = "booking.confirmed"
	EventBookingCancelled   BookingEvent = "booking.cancelled"
	EventBookingRescheduled BookingEvent = "booking.rescheduled"
	EventBookingCheckedIn   BookingEvent = "booking.checked_in"
)

// Notification is what the core hands to the dispatcher after a commit
type Notification struct {
	Event       BookingEvent    `json:"event"`
	Booking     *models.Booking `json:"booking"`
	RefundCents int64           `json:"refund_cents,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Notifier delivers booking notifications. Errors are logged by callers and never fail a booking.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// JSONPublisher is the broker surface used by BrokerNotifier (*mq.Publisher)
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// BrokerNotifier publishes notifications to a topic exchange
type BrokerNotifier struct {
	publisher JSONPublisher
}

// NewBrokerNotifier creates a new BrokerNotifier
func NewBrokerNotifier(publisher JSONPublisher) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher}
}

// Notify publishes n with its event as routing key
func (n *BrokerNotifier) Notify(ctx context.Context, notification Notification) error {
	return n.publisher.PublishJSON(ctx, string(notification.Event), notification)
}

// LogNotifier only logs notifications; used when no broker is configured
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	fields := logrus.Fields{"event": notification.Event}
	if notification.Booking != nil {
		fields["booking_id"] = notification.Booking.ID
		fields["user_id"] = notification.Booking.UserID
	}
	if notification.RefundCents > 0 {
		fields["refund_cents"] = notification.RefundCents
	}
	n.logger.WithFields(fields).Info("Booking notification")
	return nil
}

// dispatch sends a notification and swallows failures
func dispatch(ctx context.Context, notifier Notifier, logger *logrus.Logger, n Notification) {
	if notifier == nil {
		return
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	if err := notifier.Notify(ctx, n); err != nil {
		fields := logrus.Fields{"event": n.Event}
		if n.Booking != nil {
			fields["booking_id"] = n.Booking.ID
		}
		logger.WithError(err).WithFields(fields).Warn("Failed to dispatch booking notification")
	}
}
