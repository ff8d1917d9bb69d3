package models

import (
	"strings"
	"time"

	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
)

// Status of a ledger row. The set is closed; see transitions.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusReturned  Status = "RETURNED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the complete per-row state table. A status missing as a key
// is terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusReturned},
}

// CanTransitionTo reports whether the state table allows s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string { return string(s) }

// Kind distinguishes a fresh offer from a return flowing back to the sender.
type Kind string

const (
	KindNormal        Kind = "NORMAL"
	KindReturnRequest Kind = "RETURN_REQUEST"
)

func (k Kind) IsValid() bool {
	return k == KindNormal || k == KindReturnRequest
}

func (k Kind) String() string { return string(k) }

// MaxNoteLength bounds free text notes on transactions and archives.
const MaxNoteLength = 1000

// Transaction is one ledger row.
//
// Invariants:
//   - FromUserID != ToUserID
//   - Status follows the transitions table and changes at most once after creation
//   - ResolvedAt is set exactly when the row leaves PENDING
//   - DocumentNumber, parties, kind and CreatedAt are immutable
type Transaction struct {
	ID             id.TransactionID  `json:"id"`
	DocumentNumber id.DocumentNumber `json:"documentNumber"`
	FromUserID     id.UserID         `json:"fromUserId"`
	ToUserID       id.UserID         `json:"toUserId"`
	Status         Status            `json:"status"`
	Kind           Kind              `json:"kind"`
	Note           string            `json:"note,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	ResolvedAt     *time.Time        `json:"resolvedAt,omitempty"`
}

// NewTransaction builds a PENDING row.
func NewTransaction(
	txID id.TransactionID,
	number id.DocumentNumber,
	from, to id.UserID,
	kind Kind,
	note string,
	now time.Time,
) (*Transaction, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document number cannot be empty")
	}
	if from.IsNil() || to.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transaction parties are required")
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot assign to self")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid transaction kind")
	}
	if len(note) > MaxNoteLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "note is too long")
	}
	return &Transaction{
		ID:             txID,
		DocumentNumber: number,
		FromUserID:     from,
		ToUserID:       to,
		Status:         StatusPending,
		Kind:           kind,
		Note:           note,
		CreatedAt:      now,
	}, nil
}

// IsAddressee reports whether user is the receiving side.
func (t *Transaction) IsAddressee(user id.UserID) bool { return t.ToUserID == user }

// IsSender reports whether user is the offering side.
func (t *Transaction) IsSender(user id.UserID) bool { return t.FromUserID == user }

// IsPending reports whether the row is still outstanding.
func (t *Transaction) IsPending() bool { return t.Status == StatusPending }

// Involves reports whether user is either party.
func (t *Transaction) Involves(user id.UserID) bool {
	return t.IsSender(user) || t.IsAddressee(user)
}

// Counterpart returns the other party relative to user.
func (t *Transaction) Counterpart(user id.UserID) id.UserID {
	if t.IsSender(user) {
		return t.ToUserID
	}
	return t.FromUserID
}

// CanTransitionTo checks the state table for this row.
func (t *Transaction) CanTransitionTo(next Status) error {
	if t.Status.CanTransitionTo(next) {
		return nil
	}
	if t.Status != StatusAccepted && next == StatusReturned {
		return dErrors.New(dErrors.CodeValidation, "transaction is not accepted")
	}
	return dErrors.New(dErrors.CodeValidation, "transaction is not pending")
}

// ApplyTransition moves the row to next. Must only be called after
// CanTransitionTo returns nil. Leaving PENDING stamps ResolvedAt.
func (t *Transaction) ApplyTransition(next Status, now time.Time) {
	if t.Status == StatusPending {
		resolved := now
		t.ResolvedAt = &resolved
	}
	t.Status = next
}

// ReturnRequest builds the PENDING RETURN_REQUEST that sends custody of an
// accepted row back to its original sender.
func (t *Transaction) ReturnRequest(txID id.TransactionID, note string, now time.Time) (*Transaction, error) {
	return NewTransaction(txID, t.DocumentNumber, t.ToUserID, t.FromUserID, KindReturnRequest, note, now)
}

// NormalizeNote trims a free text note.
func NormalizeNote(note string) string {
	return strings.TrimSpace(note)
}

// RequireNote returns a validation error when note is blank or too long.
func RequireNote(note string) (string, error) {
	note = NormalizeNote(note)
	if note == "" {
		return "", dErrors.New(dErrors.CodeValidation, "note is required")
	}
	if len(note) > MaxNoteLength {
		return "", dErrors.New(dErrors.CodeValidation, "note is too long")
	}
	return note, nil
}
