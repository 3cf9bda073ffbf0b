package booking

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

const EventBookingConfirmed = "booking.confirmed"

// Publisher enqueues a JSON payload; pkg/qstash.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, body any) (string, error)
}

type ConfirmedEvent struct {
	Event   string  `json:"event"`
	Booking Booking `json:"booking"`
}

type QueueNotifier struct {
	publisher Publisher
}

var _ Notifier = (*QueueNotifier)(nil)

func NewQueueNotifier(p Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: p}
}

func (n *QueueNotifier) BookingConfirmed(ctx context.Context, b Booking) error {
	id, err := n.publisher.Publish(ctx, ConfirmedEvent{Event: EventBookingConfirmed, Booking: b})
	if err != nil {
		return fmt.Errorf("publish %s: %w", EventBookingConfirmed, err)
	}
	log.Ctx(ctx).Debug().Str("message_id", id).Str("booking_id", b.ID).Msg("booking event published")
	return nil
}
