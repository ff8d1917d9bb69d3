// Package audit records ledger events through a transactional outbox. Services
// append events inside their unit of work; a worker later publishes them.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "zimmet/pkg/domain"
)

// EventType names a ledger fact.
type EventType string

const (
	EventCustodyCreated     EventType = "custody.created"
	EventCustodyAccepted    EventType = "custody.accepted"
	EventCustodyRejected    EventType = "custody.rejected"
	EventCustodyCancelled   EventType = "custody.cancelled"
	EventCustodyReturned    EventType = "custody.returned"
	EventDocumentArchived   EventType = "document.archived"
	EventDocumentUnarchived EventType = "document.unarchived"
	EventUserCreated        EventType = "user.created"
	EventUserUpdated        EventType = "user.updated"
)

// Event is emitted from domain logic to capture one ledger mutation. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Type      EventType
	Timestamp time.Time
	// AggregateID keys the stream: the document number for ledger events,
	// the user id for directory events. Consumers get per-aggregate ordering.
	AggregateID   string
	TransactionID string
	ActorID       id.UserID
	FromUserID    id.UserID
	ToUserID      id.UserID
	Status        string
	Note          string
	RequestID     string
	Device        string
	ClientIP      string
}

// Store appends events. Postgres implementations join the caller's SQL
// transaction when one is carried in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is a stored, serialized event awaiting publication.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   EventType
	Payload     []byte
	CreatedAt   time.Time
}

// Outbox is the worker's view of the store.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher ships outbox entries to the event stream.
type Publisher interface {
	Publish(ctx context.Context, entries []OutboxEntry) error
}
