// Package notification wakes browser sessions after ledger changes. The
// payload carries no data: clients refetch their views when woken.
package notification

import (
	"sync"

	id "zimmet/pkg/domain"
)

// Subscription receives a wake-up whenever its user is signalled. Signals
// arriving before the previous one was consumed are coalesced.
type Subscription struct {
	UserID id.UserID
	C      <-chan struct{}

	ch chan struct{}
}

// Hub fans wake-ups out to the sessions connected to this process.
type Hub struct {
	mu   sync.RWMutex
	subs map[id.UserID]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[id.UserID]map[*Subscription]struct{})}
}

// Subscribe registers a session for user. Callers must Unsubscribe.
func (h *Hub) Subscribe(user id.UserID) *Subscription {
	ch := make(chan struct{}, 1)
	sub := &Subscription{UserID: user, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[user]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[user] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.UserID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.UserID)
	}
}

// Signal wakes every local session of the given users. It never blocks.
func (h *Hub) Signal(users ...id.UserID) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, u := range users {
		for sub := range h.subs[u] {
			select {
			case sub.ch <- struct{}{}:
			default:
			}
		}
	}
}

// Sessions returns the number of local sessions for user.
func (h *Hub) Sessions(user id.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[user])
}
