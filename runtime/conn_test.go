package runtime

import (
	"chat-presence/domain"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// recordingConn keeps every event pushed to it.
type recordingConn struct {
	id     string
	mu     sync.Mutex
	events []domain.OutboundEvent
	fail   bool
}

func newConn() *recordingConn {
	return &recordingConn{id: uuid.NewString()}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(_ context.Context, e domain.OutboundEvent) error {
	if c.fail {
		return fmt.Errorf("connection %s is gone", c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *recordingConn) presence() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sets [][]string
	for _, e := range c.events {
		if p, ok := e.(domain.PresenceEvent); ok {
			sets = append(sets, p.OnlineIDs)
		}
	}
	return sets
}

func (c *recordingConn) messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var msgs []domain.Message
	for _, e := range c.events {
		if m, ok := e.(domain.MessageEvent); ok {
			msgs = append(msgs, m.Message)
		}
	}
	return msgs
}
