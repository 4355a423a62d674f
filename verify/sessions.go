package verify

import "sync"

// Sessions tracks the one outstanding wallet confirmation per user.
// State lives in process memory only and is lost on restart.
type Sessions struct {
	mu      sync.Mutex
	pending map[int64]string
}

func NewSessions() *Sessions {
	return &Sessions{pending: make(map[int64]string)}
}

// SetPending overwrites any existing pending UID for the user.
func (s *Sessions) SetPending(userID int64, uid string) {
	s.mu.Lock()
	s.pending[userID] = uid
	s.mu.Unlock()
}

func (s *Sessions) GetPending(userID int64) (string, bool) {
	s.mu.Lock()
	uid, ok := s.pending[userID]
	s.mu.Unlock()
	return uid, ok
}

func (s *Sessions) ClearPending(userID int64) {
	s.mu.Lock()
	delete(s.pending, userID)
	s.mu.Unlock()
}
