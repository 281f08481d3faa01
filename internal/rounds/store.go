package rounds

import (
	"sync"
	"time"
)

// Store is the in-memory registry of live rounds, keyed by round ID.
type Store struct {
	mu     sync.Mutex
	rounds map[string]*Round
}

func NewStore() *Store {
	return &Store{rounds: make(map[string]*Round)}
}

func (s *Store) Put(r *Round) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rounds[r.ID] = r
}

// Get returns the round for its owner. A wrong user gets ErrRoundNotFound,
// not a hint that the round exists.
func (s *Store) Get(roundID string, userID uint64) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok || r.UserID != userID {
		return nil, ErrRoundNotFound
	}

	return r, nil
}

// RemoveAfter drops a settled round once the retention window has passed.
// The window keeps late retries answerable as already-settled; after it the
// ledger remains the durable record.
func (s *Store) RemoveAfter(roundID string, d time.Duration) {
	time.AfterFunc(d, func() { s.Remove(roundID) })
}

// Remove drops a settled round from the registry.
func (s *Store) Remove(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rounds, roundID)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rounds)
}
