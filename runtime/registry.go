package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Set map[string]struct{}

// Transition is an online<->offline change of one identity, captured under the
// registry lock together with the state it produced.
type Transition struct {
	IdentityID string
	Online     bool
	Version    uint64
	// OnlineIDs is the online set right after the mutation.
	OnlineIDs []string
	// Recipients are the live connections right after the mutation.
	Recipients []contract.Connection
}

type entry struct {
	domain.ConnectionEntry
	conn contract.Connection
}

// Registry is the authoritative map from identity to live connections.
// It is the only shared mutable state of the presence core; every read and
// write goes through mu.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]entry // connection ID -> entry
	identities  map[string]Set   // identity ID -> connection IDs
	onlineOrder []string         // identities in the order they came online
	capacity    int
	version     uint64
	now         func() time.Time
}

// NewRegistry returns an empty registry. capacity <= 0 means unlimited.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		entries:    make(map[string]entry),
		identities: make(map[string]Set),
		capacity:   capacity,
		now:        time.Now,
	}
}

// Register adds a live connection for identityID.
// The boolean is true only when the identity goes from offline to online.
func (r *Registry) Register(identityID string, conn contract.Connection) (Transition, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()
	if _, exists := r.entries[connID]; exists {
		return Transition{}, false, fmt.Errorf("%w: %w", errors.ErrConnectionRejected, errors.ErrAlreadyRegistered)
	}
	if r.capacity > 0 && len(r.entries) >= r.capacity {
		return Transition{}, false, fmt.Errorf("%w: %w", errors.ErrConnectionRejected, errors.ErrRegistryFull)
	}

	r.entries[connID] = entry{
		ConnectionEntry: domain.ConnectionEntry{
			IdentityID:   identityID,
			ConnectionID: connID,
			ConnectedAt:  r.now(),
		},
		conn: conn,
	}

	handles, online := r.identities[identityID]
	if !online {
		handles = make(Set)
		r.identities[identityID] = handles
		r.onlineOrder = append(r.onlineOrder, identityID)
	}
	handles[connID] = struct{}{}

	if online {
		return Transition{}, false, nil
	}
	return r.transition(identityID, true), true, nil
}

// Unregister removes the connection. Unknown handles are a no-op, which makes
// a second call for the same handle harmless.
// The boolean is true only when the identity goes from online to offline.
func (r *Registry) Unregister(connID string) (Transition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[connID]
	if !ok {
		return Transition{}, false
	}
	delete(r.entries, connID)

	identityID := e.IdentityID
	handles := r.identities[identityID]
	delete(handles, connID)
	if len(handles) > 0 {
		return Transition{}, false
	}

	delete(r.identities, identityID)
	r.onlineOrder = lo.Without(r.onlineOrder, identityID)
	return r.transition(identityID, false), true
}

// transition must be called with mu held.
func (r *Registry) transition(identityID string, online bool) Transition {
	r.version++
	return Transition{
		IdentityID: identityID,
		Online:     online,
		Version:    r.version,
		OnlineIDs:  r.snapshotLocked(),
		Recipients: r.connectionsLocked(),
	}
}

func (r *Registry) IsOnline(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.identities[identityID]
	return ok
}

// SnapshotOnlineIDs returns the online set, ordered by the time each identity came online.
func (r *Registry) SnapshotOnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []string {
	return append(make([]string, 0, len(r.onlineOrder)), r.onlineOrder...)
}

// Connections returns the live connections of one identity.
func (r *Registry) Connections(identityID string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles, ok := r.identities[identityID]
	if !ok {
		return nil
	}
	conns := make([]contract.Connection, 0, len(handles))
	for connID := range handles {
		conns = append(conns, r.entries[connID].conn)
	}
	return conns
}

// AllConnections returns every live connection.
func (r *Registry) AllConnections() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectionsLocked()
}

func (r *Registry) connectionsLocked() []contract.Connection {
	return lo.MapToSlice(r.entries, func(_ string, e entry) contract.Connection {
		return e.conn
	})
}

// Entry returns the registry record of a connection.
func (r *Registry) Entry(connID string) (domain.ConnectionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connID]
	return e.ConnectionEntry, ok
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
