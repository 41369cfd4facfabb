// Package session implements the shared-PIN session store: 20-hex-char
// tokens with a sliding expiry and a hard size cap. The store is shared
// between HTTP handlers and guarded by its own mutex.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// MaxSessions caps the session list; the oldest entry is evicted on insert
// overflow.
const MaxSessions = 10

// Lifetime is the sliding expiry window.
const Lifetime = 30 * time.Minute

// entry pairs a token with its expiry.
type entry struct {
	hash      string
	expiresAt time.Time
}

// Store is the session list.
type Store struct {
	mu      sync.Mutex
	entries []entry
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{now: now}
}

// Create generates a new session token, sweeps expired entries and enforces
// the size cap by evicting the oldest session.
func (s *Store) Create() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	hash := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	if len(s.entries) >= MaxSessions {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry{hash: hash, expiresAt: s.now().Add(Lifetime)})
	return hash, nil
}

// Validate sweeps expired entries, and on match extends the session by the
// lifetime window and returns true.
func (s *Store) Validate(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	for i := range s.entries {
		if s.entries[i].hash == hash {
			s.entries[i].expiresAt = s.now().Add(Lifetime)
			return true
		}
	}
	return false
}

// Remove drops the session with the given token.
func (s *Store) Remove(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].hash == hash {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the live session count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *Store) sweepLocked() {
	now := s.now()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.expiresAt.After(now) {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}
