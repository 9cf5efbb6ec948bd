//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-presence/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is the handle of one live bidirectional transport session.
// Send must never block: a full or closed connection returns an error.
type Connection interface {
	ID() string
	Send(ctx context.Context, e domain.OutboundEvent) error
}

// IdentityStore resolves identities for the session gate. Read only.
type IdentityStore interface {
	FindByID(ctx context.Context, identityID string) (domain.Identity, error)
}

type IRegistry interface {
	IsOnline(identityID string) bool
	SnapshotOnlineIDs() []string
	Connections(identityID string) []Connection
}

type IRelay interface {
	Deliver(ctx context.Context, senderID, recipientID string, msg domain.Message) int
}
