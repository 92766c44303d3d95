// Package session keeps per-user conversational state in memory: the cart, the
// checkout dialogue and the last message displayed in each chat.
package session

import (
	"sync"
	"time"

	"github.com/ashureev/chatshop/internal/cart"
	"github.com/ashureev/chatshop/internal/checkout"
	"github.com/ashureev/chatshop/internal/render"
)

// Session is one user's state. It is only accessed inside Store.With.
type Session struct {
	UserID   string
	Cart     *cart.Cart
	Checkout checkout.Machine
	LastSeen time.Time

	displayed map[string]render.Message
}

func newSession(userID string, now time.Time) *Session {
	return &Session{
		UserID:    userID,
		Cart:      &cart.Cart{},
		LastSeen:  now,
		displayed: make(map[string]render.Message),
	}
}

// Displayed returns the last message shown to this user in chat.
func (s *Session) Displayed(chat string) (render.Message, bool) {
	m, ok := s.displayed[chat]
	return m, ok
}

// SetDisplayed records msg as the message now showing in its chat.
func (s *Session) SetDisplayed(msg render.Message) {
	if msg.IsZero() {
		return
	}
	s.displayed[msg.Chat] = msg
}

// ForgetDisplayed drops the record for chat.
func (s *Session) ForgetDisplayed(chat string) {
	delete(s.displayed, chat)
}

type entry struct {
	mu      sync.Mutex
	sess    *Session
	evicted bool
}

// Store maps user ids to sessions. Each session has its own lock, so one
// user's updates are serialized while different users proceed in parallel.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry), now: time.Now}
}

func (s *Store) entry(userID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		e = &entry{sess: newSession(userID, s.now())}
		s.sessions[userID] = e
	}
	return e
}

// With runs fn holding the user's session lock, creating the session on first
// use. fn must not call back into the store for the same user.
func (s *Store) With(userID string, fn func(*Session) error) error {
	for {
		e := s.entry(userID)
		e.mu.Lock()
		if e.evicted {
			// Lost a race with the janitor; the next lookup creates a fresh session.
			e.mu.Unlock()
			continue
		}
		err := fn(e.sess)
		e.sess.LastSeen = s.now()
		e.mu.Unlock()
		return err
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepResult reports what a sweep removed.
type SweepResult struct {
	Evicted       int
	DraftsExpired int
}

// Sweep evicts sessions idle since before now-sessionTTL and cancels checkout
// drafts that have not advanced since before now-draftTTL. A zero TTL disables
// that half of the sweep.
func (s *Store) Sweep(now time.Time, sessionTTL, draftTTL time.Duration) SweepResult {
	s.mu.Lock()
	entries := make(map[string]*entry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.Unlock()

	var res SweepResult
	for id, e := range entries {
		e.mu.Lock()
		if draftTTL > 0 && e.sess.Checkout.Expire(now.Add(-draftTTL)) {
			res.DraftsExpired++
		}
		idle := sessionTTL > 0 && e.sess.LastSeen.Before(now.Add(-sessionTTL))
		if idle {
			e.evicted = true
		}
		e.mu.Unlock()

		if !idle {
			continue
		}
		s.mu.Lock()
		if s.sessions[id] == e {
			delete(s.sessions, id)
			res.Evicted++
		}
		s.mu.Unlock()
	}
	return res
}
