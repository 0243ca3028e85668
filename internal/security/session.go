package security

import (
	"sync"

	"go.klb.dev/unisync/internal/ucerrors"
)

// Session holds the unwrapped master key in volatile memory and gates every
// encrypt/decrypt and sync operation in the process. It is the sole owner of
// the in-memory MasterKey, per the data model's ownership rule.
type Session struct {
	mu  sync.RWMutex
	key Secret32
}

// NewSession returns a locked session (no master key set).
func NewSession() *Session { return &Session{} }

// IsReady reports whether a master key is currently set.
func (s *Session) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key.IsSet()
}

// GetMasterKey returns a copy of the master key, or ErrLocked.
func (s *Session) GetMasterKey() (Secret32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.key.IsSet() {
		return Secret32{}, ucerrors.ErrLocked
	}
	return s.key, nil
}

// SetMasterKey replaces (and zeroizes) any previous key. Idempotent.
func (s *Session) SetMasterKey(mk Secret32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key.Clear()
	s.key = mk
}

// Clear zeroizes the current master key, returning the session to Locked.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key.Clear()
}
