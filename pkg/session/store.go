package session

import (
	"context"
	"sync"
)

// Session keys reserved by the flow executor
const (
	// KeyTokenKey records which flow token key was presented on the
	// query string when the user returned from an out-of-band link.
	KeyTokenKey = "flow_token_key"
)

// PlanKey returns the session key under which the live plan for a flow
// is parked between requests.
func PlanKey(flowSlug string) string {
	return "flow_plan:" + flowSlug
}

// Store is the session-scoped key/value storage the flow executor
// relies on. Implementations must isolate sessions from each other.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
}

// InMemoryStore implements Store with per-session maps guarded by a mutex
type InMemoryStore struct {
	sessions map[string]map[string]string
	mutex    sync.RWMutex
}

// NewInMemoryStore creates a new in-memory session store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]map[string]string),
	}
}

// Get retrieves a value from the session
func (s *InMemoryStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	values, exists := s.sessions[sessionID]
	if !exists {
		return "", false, nil
	}

	value, exists := values[key]
	return value, exists, nil
}

// Set writes a value into the session
func (s *InMemoryStore) Set(ctx context.Context, sessionID, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, exists := s.sessions[sessionID]
	if !exists {
		values = make(map[string]string)
		s.sessions[sessionID] = values
	}

	values[key] = value
	return nil
}

// Delete removes a value from the session
func (s *InMemoryStore) Delete(ctx context.Context, sessionID, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if values, exists := s.sessions[sessionID]; exists {
		delete(values, key)
	}
	return nil
}
