package models

import (
	"strings"
	"time"

	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
)

// Inbox is one of the three independently acknowledged unread buckets.
type Inbox string

const (
	// InboxIncoming counts NORMAL offers waiting for me.
	InboxIncoming Inbox = "INCOMING"
	// InboxReturns ("iade") counts RETURN_REQUEST offers waiting for me.
	InboxReturns Inbox = "IADE"
	// InboxRejections ("red") counts my offers that were rejected.
	InboxRejections Inbox = "RED"
)

// Inboxes lists every inbox in display order.
var Inboxes = []Inbox{InboxIncoming, InboxReturns, InboxRejections}

func (i Inbox) IsValid() bool {
	return i == InboxIncoming || i == InboxReturns || i == InboxRejections
}

func (i Inbox) String() string { return string(i) }

// ParseInbox accepts any casing of INCOMING, IADE or RED.
func ParseInbox(raw string) (Inbox, error) {
	i := Inbox(strings.ToUpper(strings.TrimSpace(raw)))
	if !i.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "inbox must be one of INCOMING, IADE, RED")
	}
	return i, nil
}

// SeenMarks holds the last mark-seen time per inbox. A missing inbox counts
// everything.
type SeenMarks map[Inbox]time.Time

// UnreadCounts is the badge payload.
type UnreadCounts struct {
	Incoming   int `json:"incoming"`
	Returns    int `json:"iade"`
	Rejections int `json:"red"`
}

// Total sums all three inboxes.
func (c UnreadCounts) Total() int {
	return c.Incoming + c.Returns + c.Rejections
}

// CountUnread is a pure filter over the ledger rows touching me.
//
//	INCOMING: to me, PENDING, NORMAL, created after the mark
//	IADE:     to me, PENDING, RETURN_REQUEST, created after the mark
//	RED:      from me, REJECTED, resolved after the mark
func CountUnread(txs []*Transaction, me id.UserID, seen SeenMarks) UnreadCounts {
	var c UnreadCounts
	for _, t := range txs {
		switch {
		case t.IsAddressee(me) && t.IsPending():
			if t.Kind == KindReturnRequest {
				if after(t.CreatedAt, seen[InboxReturns]) {
					c.Returns++
				}
			} else if after(t.CreatedAt, seen[InboxIncoming]) {
				c.Incoming++
			}
		case t.IsSender(me) && t.Status == StatusRejected:
			at := t.CreatedAt
			if t.ResolvedAt != nil {
				at = *t.ResolvedAt
			}
			if after(at, seen[InboxRejections]) {
				c.Rejections++
			}
		}
	}
	return c
}

func after(at, mark time.Time) bool {
	return mark.IsZero() || at.After(mark)
}
