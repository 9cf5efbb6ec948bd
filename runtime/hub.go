package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"
)

// Hub owns the connection lifecycle: it drives each Session through its state
// machine, mutates the registry and triggers presence broadcasts.
type Hub struct {
	log         *slog.Logger
	registry    *Registry
	broadcaster *PresenceBroadcaster
	metrics     *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub(log *slog.Logger, registry *Registry, broadcaster *PresenceBroadcaster, metrics *observability.Metrics) *Hub {
	return &Hub{
		log:         log,
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     metrics,
		sessions:    make(map[string]*Session),
	}
}

// Open starts the lifecycle of a freshly accepted connection.
func (h *Hub) Open(conn contract.Connection) *Session {
	s := &Session{hub: h, conn: conn, state: domain.StateConnecting}
	h.mu.Lock()
	h.sessions[conn.ID()] = s
	h.mu.Unlock()
	return s
}

func (h *Hub) forget(connID string) {
	h.mu.Lock()
	delete(h.sessions, connID)
	h.mu.Unlock()
}

// publish runs after the registry mutation returned, so the new state is
// visible before any recipient is contacted.
func (h *Hub) publish(ctx context.Context, t Transition, changed bool) {
	if !changed {
		return
	}
	h.broadcaster.Broadcast(ctx, t)
}

// Registry exposes the read side used by the relay and the health endpoint.
func (h *Hub) Registry() contract.IRegistry {
	return h.registry
}

// Shutdown disconnects every open session.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	var err error
	for _, s := range sessions {
		if closeErr := s.Close(ctx); closeErr != nil && !stderrors.Is(closeErr, errors.ErrSessionClosed) {
			err = multierr.Append(err, closeErr)
		}
	}
	h.log.Info("Hub shut down", "sessions", len(sessions))
	return err
}

// Session is the state machine of one connection:
// Connecting -> Authenticated -> Registered -> Disconnected.
type Session struct {
	hub      *Hub
	conn     contract.Connection
	mu       sync.Mutex
	state    domain.ConnectionState
	identity domain.Identity
}

func (s *Session) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// moveTo must be called with mu held.
func (s *Session) moveTo(next domain.ConnectionState) error {
	if s.state == domain.StateDisconnected {
		return errors.ErrSessionClosed
	}
	if !s.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, s.state, next)
	}
	s.state = next
	return nil
}

// Authenticate binds the gate-resolved identity to the connection. The
// identity claimed by the client handshake must match it; a mismatch
// terminates the session.
func (s *Session) Authenticate(identity domain.Identity, claimedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if claimedID != identity.ID {
		_ = s.moveTo(domain.StateDisconnected)
		s.hub.forget(s.conn.ID())
		s.hub.metrics.ConnectionRejected("identity_mismatch")
		s.hub.log.Warn("Handshake identity mismatch",
			"user_id", identity.ID, "claimed_id", claimedID, "connection_id", s.conn.ID())
		return fmt.Errorf("%w: %w", errors.ErrConnectionRejected, errors.ErrIdentityMismatch)
	}
	if err := s.moveTo(domain.StateAuthenticated); err != nil {
		return err
	}
	s.identity = identity
	return nil
}

// Register makes the connection reachable and announces the identity when it
// just came online.
func (s *Session) Register(ctx context.Context) error {
	s.mu.Lock()
	if s.state != domain.StateAuthenticated {
		err := s.moveTo(domain.StateRegistered)
		s.mu.Unlock()
		return err
	}
	t, changed, err := s.hub.registry.Register(s.identity.ID, s.conn)
	if err != nil {
		_ = s.moveTo(domain.StateDisconnected)
		s.mu.Unlock()
		s.hub.forget(s.conn.ID())
		s.hub.metrics.ConnectionRejected("registry")
		return err
	}
	_ = s.moveTo(domain.StateRegistered)
	s.mu.Unlock()

	s.hub.metrics.ConnectionOpened()
	s.hub.log.Info("User connected",
		"user_id", s.identity.ID, "connection_id", s.conn.ID(), "came_online", changed)
	if !changed {
		// Already online: only this connection needs the current online set
		s.hub.broadcaster.Greet(ctx, s.conn, s.hub.registry.SnapshotOnlineIDs)
		return nil
	}
	s.hub.publish(ctx, t, changed)
	return nil
}

// Close is terminal. The registry entry is removed before Close returns;
// closing twice returns ErrSessionClosed and has no other effect.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	previous := s.state
	if err := s.moveTo(domain.StateDisconnected); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	s.hub.forget(s.conn.ID())

	if previous != domain.StateRegistered {
		return nil
	}
	t, changed := s.hub.registry.Unregister(s.conn.ID())
	s.hub.metrics.ConnectionClosed()
	s.hub.log.Info("User disconnected",
		"user_id", s.identity.ID, "connection_id", s.conn.ID(), "went_offline", changed)
	s.hub.publish(ctx, t, changed)
	return nil
}
