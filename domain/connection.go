package domain

import "time"

// ConnectionState is the lifecycle of one long-lived connection.
//
//	Connecting -> Authenticated -> Registered -> Disconnected
//
// Any state may move to Disconnected. Disconnected is terminal.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateAuthenticated
	StateRegistered
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateRegistered:
		return "registered"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is allowed.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	switch s {
	case StateConnecting:
		return next == StateAuthenticated || next == StateDisconnected
	case StateAuthenticated:
		return next == StateRegistered || next == StateDisconnected
	case StateRegistered:
		return next == StateDisconnected
	default:
		return false
	}
}

// ConnectionEntry is a transient registry record, never persisted.
type ConnectionEntry struct {
	IdentityID   string
	ConnectionID string
	ConnectedAt  time.Time
}
