//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"convo-sync/domain"
)

// RemoteService is the HTTP-ish command capability of the server.
// Consumed, not owned: every call returns either a typed result or a
// failure; the core never retries on its own.
type RemoteService interface {
	FetchPage(ctx context.Context, group domain.GroupID, page domain.PageRequest) ([]domain.Message, error)
	SendMessage(ctx context.Context, group domain.GroupID, groupType, content string, attachments []domain.Attachment) (domain.Message, error)
	EditMessage(ctx context.Context, id, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	TogglePin(ctx context.Context, id string) (domain.Message, error)
}

// Envelope is one raw named event delivered on a conversation group.
// Payload shapes are validated downstream, never trusted.
type Envelope struct {
	Group   domain.GroupID
	Name    string
	Payload []byte
}

// Transport is the per-conversation pub/sub capability.
// Connection handshake, reconnection and backoff are the transport's
// concern. Join returns the inbound stream for the group; the channel
// is closed when the underlying stream is lost, and the consumer is
// expected to Join again.
type Transport interface {
	Join(ctx context.Context, group domain.GroupID) (<-chan Envelope, error)
	Leave(group domain.GroupID) error
	Emit(ctx context.Context, group domain.GroupID, name string, payload []byte) error
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
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
