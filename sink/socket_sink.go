package sink

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SocketSink is the registry-side handle of one websocket connection.
// Broadcasters push into a bounded buffer, the socket writer pump drains it.
// Send never blocks: a full buffer or a closed sink reports a failed delivery.
type SocketSink struct {
	id     string
	events chan domain.OutboundEvent
	done   chan struct{}
	once   sync.Once
}

func NewSocketSink(bufferSize int) *SocketSink {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &SocketSink{
		id:     uuid.NewString(),
		events: make(chan domain.OutboundEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *SocketSink) ID() string { return s.id }

func (s *SocketSink) Send(ctx context.Context, e domain.OutboundEvent) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: connection %s closed", errors.ErrDeliveryFailed, s.id)
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case s.events <- e:
		return nil
	default:
		return fmt.Errorf("%w: connection %s buffer full", errors.ErrDeliveryFailed, s.id)
	}
}

// Events is drained by the writer pump.
func (s *SocketSink) Events() <-chan domain.OutboundEvent {
	return s.events
}

// Done is closed once the sink stops accepting events.
func (s *SocketSink) Done() <-chan struct{} {
	return s.done
}

// Close stops accepting events. The events channel itself is never closed so
// that a concurrent Send cannot panic.
func (s *SocketSink) Close() {
	s.once.Do(func() { close(s.done) })
}
