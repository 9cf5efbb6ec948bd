package domain

// Wire names of the events pushed to connected clients.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// OutboundEvent is anything pushed to a live connection.
type OutboundEvent interface {
	EventName() string
	Payload() any
}

// PresenceEvent carries the full online set, never a delta.
type PresenceEvent struct {
	OnlineIDs []string
}

func (e PresenceEvent) EventName() string { return EventOnlineUsers }
func (e PresenceEvent) Payload() any      { return e.OnlineIDs }

type MessageEvent struct {
	Message Message
}

func (e MessageEvent) EventName() string { return EventNewMessage }
func (e MessageEvent) Payload() any      { return e.Message }
