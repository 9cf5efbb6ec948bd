package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"context"
	"fmt"
	"log/slog"
)

// Relay is the real-time path of a direct message: at-most-once, no buffering.
// Durable storage is the caller's business and never waited on here.
type Relay struct {
	log      *slog.Logger
	registry contract.IRegistry
	metrics  *observability.Metrics
}

func NewRelay(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics) *Relay {
	return &Relay{log: log, registry: registry, metrics: metrics}
}

// Deliver pushes msg to every live connection of recipientID and returns how
// many accepted it. An offline recipient is not an error.
func (r *Relay) Deliver(ctx context.Context, senderID, recipientID string, msg domain.Message) int {
	conns := r.registry.Connections(recipientID)
	if len(conns) == 0 {
		r.log.Debug("Recipient offline, no real-time delivery",
			"sender_id", senderID, "recipient_id", recipientID)
		return 0
	}

	evt := domain.MessageEvent{Message: msg}
	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(ctx, evt); err != nil {
			r.metrics.DeliveryFailed(domain.EventNewMessage)
			r.log.Warn("Message delivery failed",
				"recipient_id", recipientID,
				"connection_id", conn.ID(),
				"error", fmt.Errorf("%w: %w", errors.ErrDeliveryFailed, err))
			continue
		}
		delivered++
	}
	r.metrics.MessageRelayed(delivered)
	return delivered
}
