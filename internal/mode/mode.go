// Package mode keeps the per-user echo mode for the lifetime of the process.
package mode

import "sync"

// Mode selects how the echo handler answers a user.
type Mode int

const (
	// Whispering relays messages unchanged. It is the default for unseen users.
	Whispering Mode = iota
	// Screaming upper-cases text messages before replying.
	Screaming
)

// String returns the lower-case name of the mode used in logs.
func (m Mode) String() string {
	switch m {
	case Screaming:
		return "screaming"
	case Whispering:
		return "whispering"
	default:
		return "unknown"
	}
}

// Store reads and writes user modes.
type Store interface {
	Get(userID int64) Mode
	Set(userID int64, m Mode)
}

// MemoryStore is a Store backed by a mutex-guarded map. Writes from
// concurrently handled updates are serialized; the last write wins.
type MemoryStore struct {
	mu    sync.RWMutex
	modes map[int64]Mode
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		modes: make(map[int64]Mode),
	}
}

// Get returns the user's mode, or Whispering if it was never set.
func (s *MemoryStore) Get(userID int64) Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.modes[userID]; ok {
		return m
	}
	return Whispering
}

// Set records the user's mode.
func (s *MemoryStore) Set(userID int64, m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modes[userID] = m
}

// Len returns the number of users with an explicitly set mode.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.modes)
}
