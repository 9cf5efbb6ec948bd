package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PresenceBroadcaster pushes the full online set to every live connection
// each time an identity goes online or offline.
//
// Delivery is best-effort: a failing recipient is logged and skipped, it never
// delays the others. Broadcasts are serialized so that each connection sees
// online sets in registry order; a transition older than the last one sent
// is dropped since a newer full snapshot already went out.
type PresenceBroadcaster struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	mu          sync.Mutex
	lastVersion uint64
}

func NewPresenceBroadcaster(log *slog.Logger, metrics *observability.Metrics) *PresenceBroadcaster {
	return &PresenceBroadcaster{log: log, metrics: metrics}
}

// Broadcast sends t.OnlineIDs to every recipient of t.
// It returns the number of connections the snapshot was handed to.
func (b *PresenceBroadcaster) Broadcast(ctx context.Context, t Transition) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.Version <= b.lastVersion {
		b.log.Debug("Stale presence transition skipped",
			"user_id", t.IdentityID, "version", t.Version, "last_version", b.lastVersion)
		return 0
	}
	b.lastVersion = t.Version

	evt := domain.PresenceEvent{OnlineIDs: t.OnlineIDs}
	delivered := 0
	for _, conn := range t.Recipients {
		if err := conn.Send(ctx, evt); err != nil {
			b.metrics.DeliveryFailed(domain.EventOnlineUsers)
			b.log.Warn("Presence delivery failed",
				"connection_id", conn.ID(),
				"error", fmt.Errorf("%w: %w", errors.ErrDeliveryFailed, err))
			continue
		}
		delivered++
	}
	b.metrics.PresenceBroadcast(t.Online, len(t.OnlineIDs))
	b.log.Debug("Presence broadcast",
		"user_id", t.IdentityID, "online", t.Online,
		"online_count", len(t.OnlineIDs), "recipients", delivered)
	return delivered
}

// Greet hands the current online set to a single connection. The snapshot is
// taken while broadcasts are held, so it is never older than one already sent.
func (b *PresenceBroadcaster) Greet(ctx context.Context, conn contract.Connection, snapshot func() []string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := conn.Send(ctx, domain.PresenceEvent{OnlineIDs: snapshot()}); err != nil {
		b.metrics.DeliveryFailed(domain.EventOnlineUsers)
		b.log.Warn("Presence delivery failed",
			"connection_id", conn.ID(),
			"error", fmt.Errorf("%w: %w", errors.ErrDeliveryFailed, err))
		return false
	}
	return true
}
