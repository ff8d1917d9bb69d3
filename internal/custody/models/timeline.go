package models

import (
	"sort"
	"time"

	id "zimmet/pkg/domain"
)

// MarkerType labels a registry event shown between ledger rows.
type MarkerType string

const (
	MarkerArchived   MarkerType = "ARCHIVED"
	MarkerUnarchived MarkerType = "UNARCHIVED"
)

// Marker is an append-only registry event (archive or unarchive).
type Marker struct {
	DocumentNumber id.DocumentNumber `json:"documentNumber"`
	Type           MarkerType        `json:"type"`
	At             time.Time         `json:"at"`
	ByUserID       id.UserID         `json:"byUserId"`
	Note           string            `json:"note,omitempty"`
}

// TimelineEntryType distinguishes ledger rows from registry markers.
type TimelineEntryType string

const (
	TimelineTransaction TimelineEntryType = "TRANSACTION"
	TimelineArchived    TimelineEntryType = "ARCHIVED"
	TimelineUnarchived  TimelineEntryType = "UNARCHIVED"
)

// TimelineEntry is one item of a document's history.
type TimelineEntry struct {
	Type        TimelineEntryType `json:"type"`
	At          time.Time         `json:"at"`
	Transaction *TransactionView  `json:"transaction,omitempty"`
	By          *UserSummary      `json:"by,omitempty"`
	Note        string            `json:"note,omitempty"`
}

// BuildTimeline interleaves ledger rows and markers, oldest first. Rows and
// markers at the same instant keep their input order with rows first.
func BuildTimeline(rows []TransactionView, markers []Marker, users map[id.UserID]UserSummary) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(rows)+len(markers))
	for i := range rows {
		out = append(out, TimelineEntry{
			Type:        TimelineTransaction,
			At:          rows[i].CreatedAt,
			Transaction: &rows[i],
		})
	}
	for _, m := range markers {
		entry := TimelineEntry{
			Type: TimelineArchived,
			At:   m.At,
			Note: m.Note,
		}
		if m.Type == MarkerUnarchived {
			entry.Type = TimelineUnarchived
		}
		if u, ok := users[m.ByUserID]; ok {
			by := u
			entry.By = &by
		} else {
			entry.By = &UserSummary{ID: m.ByUserID}
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out
}
