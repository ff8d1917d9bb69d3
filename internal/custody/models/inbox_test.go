package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "zimmet/pkg/domain"
)

func row(from, to id.UserID, status Status, kind Kind, created time.Time) *Transaction {
	t := &Transaction{
		ID:             id.NewTransactionID(),
		DocumentNumber: "500",
		FromUserID:     from,
		ToUserID:       to,
		Status:         status,
		Kind:           kind,
		CreatedAt:      created,
	}
	if status != StatusPending {
		resolved := created.Add(time.Minute)
		t.ResolvedAt = &resolved
	}
	return t
}

func TestCountUnread(t *testing.T) {
	me, other := id.NewUserID(), id.NewUserID()
	txs := []*Transaction{
		row(other, me, StatusPending, KindNormal, t0),
		row(other, me, StatusPending, KindNormal, t0.Add(10*time.Minute)),
		row(other, me, StatusPending, KindReturnRequest, t0),
		row(me, other, StatusRejected, KindNormal, t0),
		row(me, other, StatusPending, KindNormal, t0),  // outgoing pending, not counted
		row(other, me, StatusAccepted, KindNormal, t0), // resolved, not counted
		row(other, me, StatusRejected, KindNormal, t0), // I rejected it, not my RED
	}

	t.Run("nothing seen", func(t *testing.T) {
		c := CountUnread(txs, me, nil)
		assert.Equal(t, UnreadCounts{Incoming: 2, Returns: 1, Rejections: 1}, c)
		assert.Equal(t, 4, c.Total())
	})

	t.Run("mark seen incoming touches only incoming", func(t *testing.T) {
		c := CountUnread(txs, me, SeenMarks{InboxIncoming: t0.Add(5 * time.Minute)})
		assert.Equal(t, UnreadCounts{Incoming: 1, Returns: 1, Rejections: 1}, c)
	})

	t.Run("rejections use resolution time", func(t *testing.T) {
		c := CountUnread(txs, me, SeenMarks{InboxRejections: t0.Add(30 * time.Second)})
		assert.Equal(t, 1, c.Rejections, "rejected after the mark")

		c = CountUnread(txs, me, SeenMarks{InboxRejections: t0.Add(2 * time.Minute)})
		assert.Equal(t, 0, c.Rejections)
	})
}

func TestParseInbox(t *testing.T) {
	for _, raw := range []string{"incoming", "IADE", " red "} {
		_, err := ParseInbox(raw)
		require.NoError(t, err, raw)
	}
	_, err := ParseInbox("outbox")
	require.Error(t, err)
}
