package models

import (
	"time"

	id "zimmet/pkg/domain"
	dErrors "zimmet/pkg/domain-errors"
)

// DocumentStatus is the registry lifecycle of a document.
type DocumentStatus string

const (
	DocumentActive   DocumentStatus = "ACTIVE"
	DocumentArchived DocumentStatus = "ARCHIVED"
)

func (s DocumentStatus) IsValid() bool {
	return s == DocumentActive || s == DocumentArchived
}

// Document is the registry record for one document number.
//
// Invariants:
//   - Number is digits only and immutable
//   - CurrentHolderID is written only through AssignHolder (ledger accept path)
//   - Archiving keeps CurrentHolderID for audit; ActiveHolder hides it
//   - ArchivedAt, ArchivedByUserID and ArchiveNote are set together
type Document struct {
	Number             id.DocumentNumber `json:"number"`
	Status             DocumentStatus    `json:"status"`
	CurrentHolderID    *id.UserID        `json:"currentHolderId,omitempty"`
	ArchivedAt         *time.Time        `json:"archivedAt,omitempty"`
	ArchivedByUserID   *id.UserID        `json:"archivedByUserId,omitempty"`
	ArchiveNote        string            `json:"archiveNote,omitempty"`
	UnarchivedAt       *time.Time        `json:"unarchivedAt,omitempty"`
	UnarchivedByUserID *id.UserID        `json:"unarchivedByUserId,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// NewDocument creates an ACTIVE document with no holder.
func NewDocument(number id.DocumentNumber, now time.Time) (*Document, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document number cannot be empty")
	}
	return &Document{
		Number:    number,
		Status:    DocumentActive,
		CreatedAt: now,
	}, nil
}

func (d *Document) IsArchived() bool { return d.Status == DocumentArchived }

// ActiveHolder is the holder readers should display: nil once archived.
func (d *Document) ActiveHolder() *id.UserID {
	if d.IsArchived() {
		return nil
	}
	return d.CurrentHolderID
}

// IsHeldBy reports whether user is the current holder of an active document.
func (d *Document) IsHeldBy(user id.UserID) bool {
	h := d.ActiveHolder()
	return h != nil && *h == user
}

// AssignHolder records who last accepted custody.
func (d *Document) AssignHolder(user id.UserID) {
	holder := user
	d.CurrentHolderID = &holder
}

// CanArchive checks if the document can transition to ARCHIVED.
func (d *Document) CanArchive() error {
	if d.IsArchived() {
		return dErrors.New(dErrors.CodeValidation, "document is already archived")
	}
	return nil
}

// ApplyArchive transitions the document to ARCHIVED.
// Must only be called after CanArchive returns nil.
func (d *Document) ApplyArchive(by id.UserID, note string, now time.Time) {
	archivedBy := by
	archivedAt := now
	d.Status = DocumentArchived
	d.ArchivedAt = &archivedAt
	d.ArchivedByUserID = &archivedBy
	d.ArchiveNote = note
}

// CanUnarchive checks if the document can transition back to ACTIVE.
func (d *Document) CanUnarchive() error {
	if !d.IsArchived() {
		return dErrors.New(dErrors.CodeValidation, "document is not archived")
	}
	return nil
}

// ApplyUnarchive transitions the document back to ACTIVE. Archive fields are
// kept so the timeline can still show the ARCHIVED marker.
func (d *Document) ApplyUnarchive(by id.UserID, now time.Time) {
	unarchivedBy := by
	unarchivedAt := now
	d.Status = DocumentActive
	d.UnarchivedAt = &unarchivedAt
	d.UnarchivedByUserID = &unarchivedBy
}

// Clone returns a deep copy so stores never share pointers with callers.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.CurrentHolderID = cloneUserID(d.CurrentHolderID)
	c.ArchivedByUserID = cloneUserID(d.ArchivedByUserID)
	c.UnarchivedByUserID = cloneUserID(d.UnarchivedByUserID)
	c.ArchivedAt = cloneTime(d.ArchivedAt)
	c.UnarchivedAt = cloneTime(d.UnarchivedAt)
	return &c
}

// Clone returns a deep copy of the row.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	return &c
}

func cloneUserID(u *id.UserID) *id.UserID {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
