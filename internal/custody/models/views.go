package models

import (
	"sort"
	"time"

	id "zimmet/pkg/domain"
)

// UserSummary is the counterpart info attached to ledger rows.
type UserSummary struct {
	ID         id.UserID `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Department string    `json:"department,omitempty"`
}

// TransactionView is a ledger row enriched with party summaries.
type TransactionView struct {
	Transaction
	FromUser UserSummary `json:"fromUser"`
	ToUser   UserSummary `json:"toUser"`
}

// Enrich attaches summaries from users; unknown ids get an id-only summary.
func Enrich(txs []*Transaction, users map[id.UserID]UserSummary) []TransactionView {
	out := make([]TransactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionView{
			Transaction: *t.Clone(),
			FromUser:    summaryOf(users, t.FromUserID),
			ToUser:      summaryOf(users, t.ToUserID),
		})
	}
	return out
}

func summaryOf(users map[id.UserID]UserSummary, uid id.UserID) UserSummary {
	if u, ok := users[uid]; ok {
		return u
	}
	return UserSummary{ID: uid}
}

// PartyIDs collects the distinct user ids referenced by rows and markers.
func PartyIDs(txs []*Transaction, markers []Marker, docs []*Document) []id.UserID {
	seen := make(map[id.UserID]struct{})
	var out []id.UserID
	add := func(u id.UserID) {
		if u.IsNil() {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, t := range txs {
		add(t.FromUserID)
		add(t.ToUserID)
	}
	for _, m := range markers {
		add(m.ByUserID)
	}
	for _, d := range docs {
		if d.CurrentHolderID != nil {
			add(*d.CurrentHolderID)
		}
	}
	return out
}

// SortNewestFirst orders rows by CreatedAt descending, id as tie breaker.
func SortNewestFirst(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID.String() > txs[j].ID.String()
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}

// SortOldestFirst orders rows by CreatedAt ascending, id as tie breaker.
func SortOldestFirst(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID.String() < txs[j].ID.String()
		}
		return txs[i].CreatedAt.Before(txs[j].CreatedAt)
	})
}

// DocumentDetail is the registry record with its displayable holder.
type DocumentDetail struct {
	Document
	Holder *UserSummary `json:"holder,omitempty"`
}

// ActiveAssignment is one row of the active assignments report.
type ActiveAssignment struct {
	DocumentNumber id.DocumentNumber `json:"documentNumber"`
	Holder         UserSummary       `json:"holder"`
	// Since is when the holder accepted; nil if no matching ACCEPTED row exists.
	Since       *time.Time       `json:"since,omitempty"`
	Transaction *TransactionView `json:"transaction,omitempty"`
}

// OverdueItem is one row of the overdue report.
type OverdueItem struct {
	TransactionView
	OverdueMinutes int `json:"overdueMinutes"`
}

// Holding groups the ACTIVE documents one user holds.
type Holding struct {
	Holder    UserSummary         `json:"holder"`
	Documents []id.DocumentNumber `json:"documents"`
}

// ElapsedMinutes is now-createdAt truncated to whole minutes, never negative.
func ElapsedMinutes(createdAt, now time.Time) int {
	d := now.Sub(createdAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// IsOverdue reports whether a PENDING row has waited longer than threshold.
func IsOverdue(t *Transaction, now time.Time, threshold time.Duration) bool {
	return t.IsPending() && now.Sub(t.CreatedAt) > threshold
}

// LatestAcceptedInto returns the newest ACCEPTED row of number whose
// addressee is holder, or nil.
func LatestAcceptedInto(txs []*Transaction, number id.DocumentNumber, holder id.UserID) *Transaction {
	var latest *Transaction
	for _, t := range txs {
		if t.DocumentNumber != number || t.Status != StatusAccepted || t.ToUserID != holder {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	return latest
}

// GroupHoldings builds per-holder document lists, ordered by holder name then
// document number. Archived documents and documents without a holder are skipped.
func GroupHoldings(docs []*Document, users map[id.UserID]UserSummary) []Holding {
	byHolder := make(map[id.UserID][]id.DocumentNumber)
	for _, d := range docs {
		h := d.ActiveHolder()
		if h == nil {
			continue
		}
		byHolder[*h] = append(byHolder[*h], d.Number)
	}
	out := make([]Holding, 0, len(byHolder))
	for uid, numbers := range byHolder {
		sort.Slice(numbers, func(i, j int) bool { return lessNumber(numbers[i], numbers[j]) })
		out = append(out, Holding{Holder: summaryOf(users, uid), Documents: numbers})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Holder.FullName == out[j].Holder.FullName {
			return out[i].Holder.ID.String() < out[j].Holder.ID.String()
		}
		return out[i].Holder.FullName < out[j].Holder.FullName
	})
	return out
}

// SortDocumentsByNumber orders docs numerically by document number.
func SortDocumentsByNumber(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool { return lessNumber(docs[i].Number, docs[j].Number) })
}

// lessNumber orders digit strings numerically without parsing.
func lessNumber(a, b id.DocumentNumber) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Party is a ledger participant as seen by the custody module.
type Party struct {
	UserSummary
	Active bool
	Admin  bool
}

// Actor is the authenticated caller of a registry operation.
type Actor struct {
	UserID id.UserID
	Admin  bool
}
