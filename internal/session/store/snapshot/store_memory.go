// Package snapshot persists the minimal resumable subset of a session so a
// page reload can resume the requirement loop without re-identification.
// Snapshots are keyed by session ID and invalidated on expiry or terminal
// completion.
package snapshot

import (
	"context"
	"sync"
	"time"

	"veriflow/internal/session"
	"veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// MemoryStore keeps snapshots in process memory. Used in tests and when no
// durable backend is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[domain.SessionID]session.Snapshot
	now       func() time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[domain.SessionID]session.Snapshot),
		now:       time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SessionID] = *snap
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id domain.SessionID) (*session.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if snap.Expired(s.now()) {
		s.mu.Lock()
		delete(s.snapshots, id)
		s.mu.Unlock()
		return nil, sentinel.ErrExpired
	}
	out := snap
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	return nil
}
