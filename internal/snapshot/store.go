package snapshot

import (
	"sync"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
)

// Store holds the current snapshot and the latest trade candidates. It is
// shared by the trading loop, the refresh job and the status API.
type Store struct {
	mu           sync.RWMutex
	current      *Snapshot
	candidates   []contracts.Asset
	candidatesAt time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Current returns the current snapshot, or nil before the first build
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the current snapshot
func (s *Store) Set(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snap
}

// Apply replaces the current snapshot with fn(current) atomically. fn must
// not block; it is meant for copy-with-field updates. A nil current
// snapshot is left alone.
func (s *Store) Apply(fn func(*Snapshot) *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	s.current = fn(s.current)
	return s.current
}

// Replace stores built, a snapshot built from base. When the current
// snapshot moved on while building, the two are merged with Rebase.
func (s *Store) Replace(base, built *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current == base {
		s.current = built
	} else {
		s.current = Rebase(built, base, s.current)
	}
	return s.current
}

// SetCandidates records the latest candidate selection
func (s *Store) SetCandidates(assets []contracts.Asset, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append([]contracts.Asset(nil), assets...)
	s.candidatesAt = at
}

// Candidates returns a copy of the latest candidates and when they were selected
func (s *Store) Candidates() ([]contracts.Asset, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.Asset(nil), s.candidates...), s.candidatesAt
}
