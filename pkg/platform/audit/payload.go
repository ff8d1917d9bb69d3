package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the JSON body published for each event.
type Payload struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Timestamp     string `json:"timestamp"`
	AggregateID   string `json:"aggregateId"`
	TransactionID string `json:"transactionId,omitempty"`
	ActorID       string `json:"actorId,omitempty"`
	FromUserID    string `json:"fromUserId,omitempty"`
	ToUserID      string `json:"toUserId,omitempty"`
	Status        string `json:"status,omitempty"`
	Note          string `json:"note,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	Device        string `json:"device,omitempty"`
	ClientIP      string `json:"clientIp,omitempty"`
}

// NewEntry serializes event into an outbox entry with a fresh id.
func NewEntry(event Event, now time.Time) (OutboxEntry, error) {
	entryID := uuid.New()
	ts := event.Timestamp
	if ts.IsZero() {
		ts = now
	}
	p := Payload{
		ID:            entryID.String(),
		Type:          string(event.Type),
		Timestamp:     ts.UTC().Format(time.RFC3339Nano),
		AggregateID:   event.AggregateID,
		TransactionID: event.TransactionID,
		Status:        event.Status,
		Note:          event.Note,
		RequestID:     event.RequestID,
		Device:        event.Device,
		ClientIP:      event.ClientIP,
	}
	if !event.ActorID.IsNil() {
		p.ActorID = event.ActorID.String()
	}
	if !event.FromUserID.IsNil() {
		p.FromUserID = event.FromUserID.String()
	}
	if !event.ToUserID.IsNil() {
		p.ToUserID = event.ToUserID.String()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	return OutboxEntry{
		ID:          entryID,
		AggregateID: event.AggregateID,
		EventType:   event.Type,
		Payload:     raw,
		CreatedAt:   now,
	}, nil
}
