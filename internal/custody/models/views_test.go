package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "zimmet/pkg/domain"
)

func TestElapsedMinutesFloors(t *testing.T) {
	assert.Equal(t, 16, ElapsedMinutes(t0, t0.Add(16*time.Minute+59*time.Second)))
	assert.Equal(t, 0, ElapsedMinutes(t0, t0.Add(-time.Minute)))
}

func TestIsOverdue(t *testing.T) {
	a, b := id.NewUserID(), id.NewUserID()
	old := row(a, b, StatusPending, KindNormal, t0.Add(-16*time.Minute))
	fresh := row(a, b, StatusPending, KindNormal, t0.Add(-5*time.Minute))
	resolved := row(a, b, StatusAccepted, KindNormal, t0.Add(-time.Hour))

	assert.True(t, IsOverdue(old, t0, 15*time.Minute))
	assert.False(t, IsOverdue(fresh, t0, 15*time.Minute))
	assert.False(t, IsOverdue(resolved, t0, 15*time.Minute))
}

func TestLatestAcceptedInto(t *testing.T) {
	a, b := id.NewUserID(), id.NewUserID()
	first := row(a, b, StatusAccepted, KindNormal, t0)
	second := row(a, b, StatusAccepted, KindNormal, t0.Add(time.Hour))
	wrongHolder := row(b, a, StatusAccepted, KindNormal, t0.Add(2*time.Hour))

	got := LatestAcceptedInto([]*Transaction{first, second, wrongHolder}, "500", b)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Nil(t, LatestAcceptedInto(nil, "500", b))
}

func TestBuildTimelineOrdersOldestFirst(t *testing.T) {
	a, b := id.NewUserID(), id.NewUserID()
	users := map[id.UserID]UserSummary{a: {ID: a, FullName: "Ayşe"}, b: {ID: b, FullName: "Bora"}}
	rows := Enrich([]*Transaction{
		row(a, b, StatusAccepted, KindNormal, t0),
		row(b, a, StatusAccepted, KindReturnRequest, t0.Add(2*time.Hour)),
	}, users)
	markers := []Marker{
		{DocumentNumber: "500", Type: MarkerArchived, At: t0.Add(time.Hour), ByUserID: b, Note: "filed"},
		{DocumentNumber: "500", Type: MarkerUnarchived, At: t0.Add(90 * time.Minute), ByUserID: a},
	}

	tl := BuildTimeline(rows, markers, users)
	require.Len(t, tl, 4)
	assert.Equal(t, []TimelineEntryType{TimelineTransaction, TimelineArchived, TimelineUnarchived, TimelineTransaction},
		[]TimelineEntryType{tl[0].Type, tl[1].Type, tl[2].Type, tl[3].Type})
	assert.Equal(t, "Bora", tl[1].By.FullName)
	assert.Equal(t, "Ayşe", tl[0].Transaction.FromUser.FullName)
}

func TestGroupHoldings(t *testing.T) {
	a, b := id.NewUserID(), id.NewUserID()
	users := map[id.UserID]UserSummary{a: {ID: a, FullName: "Ayşe"}, b: {ID: b, FullName: "Bora"}}

	mk := func(n id.DocumentNumber, holder *id.UserID, archived bool) *Document {
		d, _ := NewDocument(n, t0)
		if holder != nil {
			d.AssignHolder(*holder)
		}
		if archived {
			d.ApplyArchive(*holder, "x", t0)
		}
		return d
	}
	docs := []*Document{
		mk("10", &a, false),
		mk("9", &a, false),
		mk("7", &b, true),
		mk("3", nil, false),
		mk("4", &b, false),
	}

	got := GroupHoldings(docs, users)
	require.Len(t, got, 2)
	assert.Equal(t, "Ayşe", got[0].Holder.FullName)
	assert.Equal(t, []id.DocumentNumber{"9", "10"}, got[0].Documents)
	assert.Equal(t, []id.DocumentNumber{"4"}, got[1].Documents)
}
