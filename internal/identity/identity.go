// Package identity resolves the durable session id for this device.
//
// The id lives in a local KV under a fixed key.  It is minted on first use,
// reused across restarts and erased only when the patient ends the session.
// Concurrent processes sharing one KV race on mint; the last writer wins.
package identity

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"wellness-chat/pkg"
)

// SessionKey is the KV key holding the current session id.
const SessionKey = "chat_session_id"

// Store resolves and invalidates the session id kept in a KV.
type Store struct {
	kv    KV
	newID func() string

	mu      sync.Mutex
	retired map[pkg.SessionID]struct{}
}

// NewStore constructs a Store over kv using random UUIDs for new ids.
func NewStore(kv KV) *Store {
	return &Store{
		kv:      kv,
		newID:   func() string { return uuid.NewString() },
		retired: make(map[pkg.SessionID]struct{}),
	}
}

// Resolve returns the persisted session id, minting and persisting a new one
// when none exists.  Ids retired by Invalidate are never handed out again.
func (s *Store) Resolve() (pkg.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.kv.Get(SessionKey)
	if err != nil {
		return "", fmt.Errorf("identity: resolve: %w", err)
	}
	if ok && v != "" && !s.isRetired(pkg.SessionID(v)) {
		return pkg.SessionID(v), nil
	}

	id := pkg.SessionID(s.newID())
	for s.isRetired(id) {
		id = pkg.SessionID(s.newID())
	}
	if err := s.kv.Set(SessionKey, string(id)); err != nil {
		return "", fmt.Errorf("identity: persist: %w", err)
	}
	return id, nil
}

// Invalidate erases the persisted id.  The next Resolve mints a fresh one.
func (s *Store) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.kv.Get(SessionKey)
	if err != nil {
		return fmt.Errorf("identity: invalidate: %w", err)
	}
	if ok && v != "" {
		s.retired[pkg.SessionID(v)] = struct{}{}
	}
	if err := s.kv.Remove(SessionKey); err != nil {
		return fmt.Errorf("identity: invalidate: %w", err)
	}
	return nil
}

func (s *Store) isRetired(id pkg.SessionID) bool {
	_, ok := s.retired[id]
	return ok
}
