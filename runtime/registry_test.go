package runtime

import (
	"chat-presence/errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_One_Identity_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	conn := newConn()

	// Given nobody is connected
	req.False(registry.IsOnline("alice"))
	req.Empty(registry.SnapshotOnlineIDs())

	// When alice registers a connection
	transition, changed, err := registry.Register("alice", conn)

	// Then alice went online
	req.NoError(err)
	req.True(changed)
	req.True(transition.Online)
	req.Equal("alice", transition.IdentityID)
	req.Equal([]string{"alice"}, transition.OnlineIDs)
	req.Len(transition.Recipients, 1)
	req.True(registry.IsOnline("alice"))
	req.Equal([]string{"alice"}, registry.SnapshotOnlineIDs())

	entry, ok := registry.Entry(conn.ID())
	req.True(ok)
	req.Equal("alice", entry.IdentityID)
	req.False(entry.ConnectedAt.IsZero())
}

func TestRegistry_Second_Connection_Is_Not_A_Transition(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)

	_, changed, err := registry.Register("alice", newConn())
	req.NoError(err)
	req.True(changed)

	// When alice opens a second tab
	_, changed, err = registry.Register("alice", newConn())

	// Then nothing is reported
	req.NoError(err)
	req.False(changed)
	req.Equal(2, registry.Len())
	req.Len(registry.Connections("alice"), 2)
	req.Equal([]string{"alice"}, registry.SnapshotOnlineIDs())
}

func TestRegistry_Unregister_Last_Connection_Goes_Offline(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	tab1, tab2 := newConn(), newConn()
	_, _, _ = registry.Register("alice", tab1)
	_, _, _ = registry.Register("alice", tab2)

	// When one of the two tabs closes, alice stays online
	_, changed := registry.Unregister(tab1.ID())
	req.False(changed)
	req.True(registry.IsOnline("alice"))

	// When the last one closes, alice goes offline exactly once
	transition, changed := registry.Unregister(tab2.ID())
	req.True(changed)
	req.False(transition.Online)
	req.Empty(transition.OnlineIDs)
	req.Empty(transition.Recipients)
	req.False(registry.IsOnline("alice"))
	req.Nil(registry.Connections("alice"))
}

func TestRegistry_Unregister_Twice_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	conn := newConn()
	_, _, _ = registry.Register("alice", conn)

	_, changed := registry.Unregister(conn.ID())
	req.True(changed)

	transition, changed := registry.Unregister(conn.ID())
	req.False(changed)
	req.Zero(transition)
	req.Zero(registry.Len())
}

func TestRegistry_Online_Order_Follows_Arrival(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	bobConn := newConn()
	_, _, _ = registry.Register("carol", newConn())
	_, _, _ = registry.Register("bob", bobConn)
	_, _, _ = registry.Register("alice", newConn())

	req.Equal([]string{"carol", "bob", "alice"}, registry.SnapshotOnlineIDs())

	registry.Unregister(bobConn.ID())
	req.Equal([]string{"carol", "alice"}, registry.SnapshotOnlineIDs())
}

func TestRegistry_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	_, _, _ = registry.Register("alice", newConn())

	snapshot := registry.SnapshotOnlineIDs()
	snapshot[0] = "mallory"

	req.Equal([]string{"alice"}, registry.SnapshotOnlineIDs())
}

func TestRegistry_Capacity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(1)
	_, _, err := registry.Register("alice", newConn())
	req.NoError(err)

	_, changed, err := registry.Register("bob", newConn())

	req.ErrorIs(err, errors.ErrConnectionRejected)
	req.ErrorIs(err, errors.ErrRegistryFull)
	req.False(changed)
	req.False(registry.IsOnline("bob"))
}

func TestRegistry_Same_Handle_Twice_Is_Rejected(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	conn := newConn()
	_, _, err := registry.Register("alice", conn)
	req.NoError(err)

	_, _, err = registry.Register("alice", conn)
	req.ErrorIs(err, errors.ErrAlreadyRegistered)
	req.Equal(1, registry.Len())
}

func TestRegistry_Versions_Increase_With_Transitions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	conn := newConn()

	first, _, _ := registry.Register("alice", conn)
	second, _, _ := registry.Register("bob", newConn())
	third, _ := registry.Unregister(conn.ID())

	req.Less(first.Version, second.Version)
	req.Less(second.Version, third.Version)
}

func TestRegistry_Concurrent_Registrations(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	const identities = 50
	const tabs = 4

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := map[string]int{}
	conns := make(chan *recordingConn, identities*tabs)

	for i := 0; i < identities; i++ {
		for j := 0; j < tabs; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				conn := newConn()
				_, changed, err := registry.Register(id, conn)
				if err != nil {
					return
				}
				conns <- conn
				if changed {
					mu.Lock()
					transitions[id]++
					mu.Unlock()
				}
			}(fmt.Sprintf("user-%d", i))
		}
	}
	wg.Wait()
	close(conns)

	// Then every identity went online exactly once
	req.Len(transitions, identities)
	for id, count := range transitions {
		req.Equal(1, count, id)
	}
	req.Len(registry.SnapshotOnlineIDs(), identities)
	req.Equal(identities*tabs, registry.Len())

	// When every connection closes concurrently
	for conn := range conns {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			registry.Unregister(connID)
		}(conn.ID())
	}
	wg.Wait()

	req.Empty(registry.SnapshotOnlineIDs())
	req.Zero(registry.Len())
}
