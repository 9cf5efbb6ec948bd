package runtime

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHub(capacity int) (*Hub, *Registry) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(capacity)
	return NewHub(log, registry, NewPresenceBroadcaster(log, nil), nil), registry
}

func connect(t *testing.T, hub *Hub, conn *recordingConn, id string) *Session {
	t.Helper()
	session := hub.Open(conn)
	require.NoError(t, session.Authenticate(domain.Identity{ID: id}, id))
	require.NoError(t, session.Register(context.Background()))
	return session
}

func TestHub_Two_Identities_Connect_Then_One_Leaves(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, _ := newTestHub(0)
	alice, bob := newConn(), newConn()

	// Given alice connects alone
	connect(t, hub, alice, "alice")
	req.Equal([][]string{{"alice"}}, alice.presence())

	// When bob connects
	bobSession := connect(t, hub, bob, "bob")

	// Then both receive the full online set
	req.Equal([][]string{{"alice"}, {"alice", "bob"}}, alice.presence())
	req.Equal([][]string{{"alice", "bob"}}, bob.presence())

	// When bob leaves
	req.NoError(bobSession.Close(ctx))

	// Then alice is told, bob is not
	req.Equal([][]string{{"alice"}, {"alice", "bob"}, {"alice"}}, alice.presence())
	req.Len(bob.presence(), 1)
	req.Equal(domain.StateDisconnected, bobSession.State())
}

func TestHub_Second_Tab_Gets_Snapshot_Without_Broadcast(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, registry := newTestHub(0)
	tab1, tab2, bob := newConn(), newConn(), newConn()

	first := connect(t, hub, tab1, "alice")
	connect(t, hub, bob, "bob")
	second := connect(t, hub, tab2, "alice")

	// The second tab alone receives the current online set
	req.Equal([][]string{{"alice"}, {"alice", "bob"}}, tab1.presence())
	req.Equal([][]string{{"alice", "bob"}}, bob.presence())
	req.Equal([][]string{{"alice", "bob"}}, tab2.presence())

	// Closing one tab keeps alice online without any broadcast
	req.NoError(first.Close(ctx))
	req.True(registry.IsOnline("alice"))
	req.Len(tab2.presence(), 1)
	req.Len(bob.presence(), 1)

	// Closing the last tab announces alice offline to bob
	req.NoError(second.Close(ctx))
	req.False(registry.IsOnline("alice"))
	req.Equal([][]string{{"alice", "bob"}, {"bob"}}, bob.presence())
}

func TestHub_Second_Tab_Greeting_Failure_Keeps_Registration(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(0)
	connect(t, hub, newConn(), "alice")
	broken := newConn()
	broken.fail = true

	session := connect(t, hub, broken, "alice")

	req.Equal(domain.StateRegistered, session.State())
	req.Equal(2, registry.Len())
	req.Empty(broken.presence())
}

func TestHub_Identity_Mismatch_Rejects_Connection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, registry := newTestHub(0)
	watcher := newConn()
	connect(t, hub, watcher, "alice")
	mallory := newConn()

	// When the handshake claims another identity than the credential
	session := hub.Open(mallory)
	err := session.Authenticate(domain.Identity{ID: "mallory"}, "alice")

	// Then the connection is terminated and never registered
	req.ErrorIs(err, errors.ErrConnectionRejected)
	req.ErrorIs(err, errors.ErrIdentityMismatch)
	req.Equal(domain.StateDisconnected, session.State())
	req.ErrorIs(session.Register(ctx), errors.ErrSessionClosed)
	req.False(registry.IsOnline("mallory"))
	req.Len(watcher.presence(), 1)
}

func TestHub_Register_Before_Authenticate_Is_Invalid(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(0)

	session := hub.Open(newConn())
	err := session.Register(context.Background())

	req.ErrorIs(err, errors.ErrInvalidTransition)
	req.Equal(domain.StateConnecting, session.State())
	req.Zero(registry.Len())
}

func TestHub_Registry_Full_Disconnects_Session(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(1)
	connect(t, hub, newConn(), "alice")

	session := hub.Open(newConn())
	req.NoError(session.Authenticate(domain.Identity{ID: "bob"}, "bob"))
	err := session.Register(context.Background())

	req.ErrorIs(err, errors.ErrRegistryFull)
	req.Equal(domain.StateDisconnected, session.State())
	req.False(registry.IsOnline("bob"))
}

func TestHub_Close_Twice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, registry := newTestHub(0)
	watcher := newConn()
	connect(t, hub, watcher, "alice")
	session := connect(t, hub, newConn(), "bob")

	req.NoError(session.Close(ctx))
	req.ErrorIs(session.Close(ctx), errors.ErrSessionClosed)

	// A single offline broadcast went out
	req.Equal([][]string{{"alice"}, {"alice", "bob"}, {"alice"}}, watcher.presence())
	req.Equal(1, registry.Len())
}

func TestHub_Close_Before_Register_Leaves_Registry_Untouched(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(0)

	session := hub.Open(newConn())
	req.NoError(session.Authenticate(domain.Identity{ID: "alice"}, "alice"))
	req.NoError(session.Close(context.Background()))

	req.Zero(registry.Len())
	req.Equal(domain.StateDisconnected, session.State())
}

func TestHub_Shutdown_Disconnects_Everyone(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	hub, registry := newTestHub(0)
	first := connect(t, hub, newConn(), "alice")
	connect(t, hub, newConn(), "bob")
	req.NoError(first.Close(ctx))

	req.NoError(hub.Shutdown(ctx))

	req.Zero(registry.Len())
	req.Empty(registry.SnapshotOnlineIDs())
}
