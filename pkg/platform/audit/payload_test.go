package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "zimmet/pkg/domain"
)

func TestNewEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	actor := id.NewUserID()

	entry, err := NewEntry(Event{
		Type:        EventCustodyAccepted,
		AggregateID: "500",
		ActorID:     actor,
		Status:      "ACCEPTED",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "500", entry.AggregateID)
	assert.Equal(t, EventCustodyAccepted, entry.EventType)
	assert.Equal(t, now, entry.CreatedAt)

	var p Payload
	require.NoError(t, json.Unmarshal(entry.Payload, &p))
	assert.Equal(t, entry.ID.String(), p.ID)
	assert.Equal(t, actor.String(), p.ActorID)
	assert.Equal(t, "2026-03-01T10:00:00Z", p.Timestamp)
	assert.Empty(t, p.FromUserID, "nil ids are omitted")
}
