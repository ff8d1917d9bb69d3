// Package store persists users.
package store

import (
	"context"
	"sort"
	"sync"

	"zimmet/internal/identity/models"
	id "zimmet/pkg/domain"
	"zimmet/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in a map with an email index.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func NewInMemory() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Create inserts user. A taken id or email yields ErrConflict.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return sentinel.ErrConflict
	}
	key := models.NormalizeEmail(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return sentinel.ErrConflict
	}
	c := *user
	s.users[user.ID] = &c
	s.byEmail[key] = user.ID
	return nil
}

func (s *InMemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	key := models.NormalizeEmail(user.Email)
	if owner, ok := s.byEmail[key]; ok && owner != user.ID {
		return sentinel.ErrConflict
	}
	delete(s.byEmail, models.NormalizeEmail(current.Email))
	c := *user
	s.users[user.ID] = &c
	s.byEmail[key] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *s.users[userID]
	return &c, nil
}

// FindByIDs returns the users that exist; unknown ids are skipped.
func (s *InMemoryUserStore) FindByIDs(_ context.Context, ids []id.UserID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(ids))
	for _, userID := range ids {
		if u, ok := s.users[userID]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

// List returns users ordered by full name.
func (s *InMemoryUserStore) List(_ context.Context, activeOnly bool) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if activeOnly && !u.IsActive {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName == out[j].FullName {
			return out[i].Email < out[j].Email
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}
