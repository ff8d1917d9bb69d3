package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "zimmet/pkg/platform/audit"
)

func TestInMemoryStoreFetchAndMark(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	for _, n := range []string{"1", "2", "3"} {
		require.NoError(t, s.Append(ctx, audit.Event{Type: audit.EventCustodyCreated, AggregateID: n}))
	}

	batch, err := s.FetchUnpublished(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "1", batch[0].AggregateID)

	require.NoError(t, s.MarkPublished(ctx, []uuid.UUID{batch[0].ID, batch[1].ID}, time.Now()))

	rest := s.Pending()
	require.Len(t, rest, 1)
	assert.Equal(t, "3", rest[0].AggregateID)
}

func TestInMemoryStoreCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.capacity = 2

	for _, n := range []string{"1", "2", "3"} {
		require.NoError(t, s.Append(ctx, audit.Event{Type: audit.EventCustodyCreated, AggregateID: n}))
	}

	pending := s.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "2", pending[0].AggregateID)
}
