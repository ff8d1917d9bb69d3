// Package store persists documents, ledger rows, registry markers and inbox
// seen marks.
package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"zimmet/internal/custody/models"
	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in maps. Safe for concurrent use; units of
// work are serialized by the caller and rolled back through Checkpoint.
type InMemoryStore struct {
	mu           sync.RWMutex
	documents    map[id.DocumentNumber]*models.Document
	transactions map[id.TransactionID]*models.Transaction
	// order keeps insertion order so equal timestamps list deterministically.
	order   []id.TransactionID
	markers map[id.DocumentNumber][]models.Marker
	seen    map[id.UserID]models.SeenMarks
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		documents:    make(map[id.DocumentNumber]*models.Document),
		transactions: make(map[id.TransactionID]*models.Transaction),
		markers:      make(map[id.DocumentNumber][]models.Marker),
		seen:         make(map[id.UserID]models.SeenMarks),
	}
}

// Checkpoint copies the ledger state and returns a func restoring it. Seen
// marks are written outside any unit of work and are left as they are.
func (s *InMemoryStore) Checkpoint() func() {
	s.mu.RLock()
	documents := make(map[id.DocumentNumber]*models.Document, len(s.documents))
	for k, v := range s.documents {
		documents[k] = v.Clone()
	}
	transactions := make(map[id.TransactionID]*models.Transaction, len(s.transactions))
	for k, v := range s.transactions {
		transactions[k] = v.Clone()
	}
	order := append([]id.TransactionID(nil), s.order...)
	markers := make(map[id.DocumentNumber][]models.Marker, len(s.markers))
	for k, v := range s.markers {
		markers[k] = append([]models.Marker(nil), v...)
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.documents = documents
		s.transactions = transactions
		s.order = order
		s.markers = markers
	}
}

func (s *InMemoryStore) FindDocument(_ context.Context, number id.DocumentNumber) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

// FindDocumentForUpdate is FindDocument; the caller's unit of work already
// holds the write lock.
func (s *InMemoryStore) FindDocumentForUpdate(ctx context.Context, number id.DocumentNumber) (*models.Document, error) {
	return s.FindDocument(ctx, number)
}

func (s *InMemoryStore) FindOrCreateDocument(_ context.Context, number id.DocumentNumber, now time.Time) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.documents[number]; ok {
		return doc.Clone(), nil
	}
	doc, err := models.NewDocument(number, now)
	if err != nil {
		return nil, err
	}
	s.documents[number] = doc
	return doc.Clone(), nil
}

func (s *InMemoryStore) SetHolder(_ context.Context, number id.DocumentNumber, holder id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[number]
	if !ok {
		return sentinel.ErrNotFound
	}
	doc.AssignHolder(holder)
	return nil
}

func (s *InMemoryStore) ArchiveDocument(_ context.Context, doc *models.Document) error {
	return s.replaceDocument(doc, models.DocumentActive)
}

func (s *InMemoryStore) UnarchiveDocument(_ context.Context, doc *models.Document) error {
	return s.replaceDocument(doc, models.DocumentArchived)
}

// replaceDocument writes doc only if the stored status is still from.
func (s *InMemoryStore) replaceDocument(doc *models.Document, from models.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.documents[doc.Number]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != from {
		return sentinel.ErrInvalidState
	}
	s.documents[doc.Number] = doc.Clone()
	return nil
}

// ListHeldDocuments returns ACTIVE documents that have a holder.
func (s *InMemoryStore) ListHeldDocuments(_ context.Context) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, d := range s.documents {
		if d.ActiveHolder() != nil {
			out = append(out, d.Clone())
		}
	}
	models.SortDocumentsByNumber(out)
	return out, nil
}

func (s *InMemoryStore) AppendMarker(_ context.Context, marker models.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[marker.DocumentNumber]; !ok {
		return sentinel.ErrNotFound
	}
	s.markers[marker.DocumentNumber] = append(s.markers[marker.DocumentNumber], marker)
	return nil
}

func (s *InMemoryStore) ListMarkers(_ context.Context, number id.DocumentNumber) ([]models.Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Marker(nil), s.markers[number]...), nil
}

// InsertTransaction stores a new row. A second PENDING row for the same
// document yields ErrConflict.
func (s *InMemoryStore) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[tx.DocumentNumber]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.transactions[tx.ID]; ok {
		return sentinel.ErrConflict
	}
	if tx.IsPending() && s.hasPendingLocked(tx.DocumentNumber) {
		return sentinel.ErrConflict
	}
	s.transactions[tx.ID] = tx.Clone()
	s.order = append(s.order, tx.ID)
	return nil
}

func (s *InMemoryStore) FindTransaction(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return tx.Clone(), nil
}

// UpdateTransactionStatus writes tx's status and resolution time only if the
// stored status is still from.
func (s *InMemoryStore) UpdateTransactionStatus(_ context.Context, tx *models.Transaction, from models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.transactions[tx.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != from {
		return sentinel.ErrInvalidState
	}
	current.Status = tx.Status
	if tx.ResolvedAt != nil {
		at := *tx.ResolvedAt
		current.ResolvedAt = &at
	}
	return nil
}

func (s *InMemoryStore) HasPending(_ context.Context, number id.DocumentNumber) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPendingLocked(number), nil
}

func (s *InMemoryStore) hasPendingLocked(number id.DocumentNumber) bool {
	for _, t := range s.transactions {
		if t.DocumentNumber == number && t.IsPending() {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) ListByUser(_ context.Context, user id.UserID) ([]*models.Transaction, error) {
	return s.filter(func(t *models.Transaction) bool { return t.Involves(user) }), nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, number id.DocumentNumber) ([]*models.Transaction, error) {
	return s.filter(func(t *models.Transaction) bool { return t.DocumentNumber == number }), nil
}

func (s *InMemoryStore) ListByDocuments(_ context.Context, numbers []id.DocumentNumber) ([]*models.Transaction, error) {
	wanted := make(map[id.DocumentNumber]struct{}, len(numbers))
	for _, n := range numbers {
		wanted[n] = struct{}{}
	}
	return s.filter(func(t *models.Transaction) bool {
		_, ok := wanted[t.DocumentNumber]
		return ok
	}), nil
}

func (s *InMemoryStore) ListPendingCreatedBefore(_ context.Context, cutoff time.Time) ([]*models.Transaction, error) {
	return s.filter(func(t *models.Transaction) bool {
		return t.IsPending() && t.CreatedAt.Before(cutoff)
	}), nil
}

func (s *InMemoryStore) filter(keep func(*models.Transaction) bool) []*models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, txID := range s.order {
		t := s.transactions[txID]
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (s *InMemoryStore) SeenMarks(_ context.Context, user id.UserID) (models.SeenMarks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.seen[user]), nil
}

// MarkSeen never moves a mark backwards.
func (s *InMemoryStore) MarkSeen(_ context.Context, user id.UserID, inbox models.Inbox, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marks, ok := s.seen[user]
	if !ok {
		marks = make(models.SeenMarks)
		s.seen[user] = marks
	}
	if prev, ok := marks[inbox]; !ok || at.After(prev) {
		marks[inbox] = at
	}
	return nil
}
