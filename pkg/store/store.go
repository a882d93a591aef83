// verge/pkg/store/store.go

package store

import (
	"sync"

	"verge/pkg/payload"
)

// Store persists payload envelopes for the local development channel,
// keyed by service id, mirroring the remote config store contract.
// GetPayload returns (nil, nil) when no payload has been stored.
type Store interface {
	SetPayload(serviceID string, env *payload.Envelope) error
	GetPayload(serviceID string) (*payload.Envelope, error)
}

// MemoryStore is the default dev-channel backend: nothing survives a
// restart, which is fine for offline iteration.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[string]*payload.Envelope
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[string]*payload.Envelope)}
}

func (s *MemoryStore) SetPayload(serviceID string, env *payload.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *env
	s.payloads[serviceID] = &cp
	return nil
}

func (s *MemoryStore) GetPayload(serviceID string) (*payload.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.payloads[serviceID]
	if !ok {
		return nil, nil
	}
	cp := *env
	return &cp, nil
}
