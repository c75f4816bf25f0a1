package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSessionExists is returned when a connection ID is registered twice.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionNotFound is returned when a connection ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Manager tracks all live sessions keyed by connection ID.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	outboxSize int
}

// NewManager creates an empty session Manager whose sessions get outboxes of
// the given capacity.
func NewManager(outboxSize int) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		outboxSize: outboxSize,
	}
}

// Add creates and registers a session for a new connection.
//
// Precondition: id must be non-empty.
// Postcondition: Returns the created Session, or ErrSessionExists.
func (m *Manager) Add(id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrSessionExists, id)
	}
	sess := New(id, m.outboxSize)
	m.sessions[id] = sess
	return sess, nil
}

// Remove unregisters a session and closes its outbox. Only the first call for
// a given ID succeeds, which lets callers run disconnect cleanup exactly once.
//
// Postcondition: Returns the removed Session, or ErrSessionNotFound.
func (m *Manager) Remove(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	sess.Outbox.Close()
	return sess, nil
}

// Get returns the session for the given connection ID.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
