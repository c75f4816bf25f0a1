package session

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxNicknameLength is the longest accepted nickname, in runes.
const MaxNicknameLength = 20

var (
	// ErrEmptyNickname is returned when a blank nickname is registered.
	ErrEmptyNickname = errors.New("nickname must not be empty")
	// ErrNicknameTooLong is returned when a nickname exceeds MaxNicknameLength.
	ErrNicknameTooLong = errors.New("nickname too long")
	// ErrNicknameSet is returned when a session registers a second nickname.
	ErrNicknameSet = errors.New("nickname already registered")
	// ErrAlreadyMatched is returned when a nickname is registered after the
	// session has created or joined a room.
	ErrAlreadyMatched = errors.New("nickname must be registered before matchmaking")
)

// Session is the matchmaking-relevant state of one live connection.
//
// The room field is a back-reference used for cleanup only; the lobby owns
// authoritative room membership.
type Session struct {
	// ID is the transport-assigned connection identifier.
	ID string
	// ConnectedAt is when the connection was accepted.
	ConnectedAt time.Time
	// Outbox queues encoded events for this connection.
	Outbox *Outbox

	mu       sync.RWMutex
	nickname string
	room     string
}

// New creates a Session with an outbox of the given capacity.
//
// Precondition: id must be non-empty.
func New(id string, outboxSize int) *Session {
	return &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		Outbox:      NewOutbox(id, outboxSize),
	}
}

// Nickname returns the registered display name, or "" before registration.
func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// Registered reports whether a nickname has been bound.
func (s *Session) Registered() bool {
	return s.Nickname() != ""
}

// SetNickname binds the display identity. It succeeds at most once per session
// and only while the session holds no room.
//
// Postcondition: Returns nil and the trimmed nickname is bound, or one of
// ErrEmptyNickname, ErrNicknameTooLong, ErrNicknameSet, ErrAlreadyMatched.
func (s *Session) SetNickname(nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return ErrEmptyNickname
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return ErrNicknameTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nickname != "" {
		return ErrNicknameSet
	}
	if s.room != "" {
		return ErrAlreadyMatched
	}
	s.nickname = nickname
	return nil
}

// DisplayName returns the nickname, falling back to the connection ID for
// sessions that never registered.
func (s *Session) DisplayName() string {
	if n := s.Nickname(); n != "" {
		return n
	}
	return s.ID
}

// Room returns the name of the room this session occupies, or "".
func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// BindRoom records the room back-reference. Called by the lobby under its lock.
func (s *Session) BindRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = name
}

// ReleaseRoom clears the back-reference if it still points at name.
//
// Postcondition: Returns true if the reference was cleared.
func (s *Session) ReleaseRoom(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != name || name == "" {
		return false
	}
	s.room = ""
	return true
}

// Send enqueues an already-encoded event on the session's outbox.
func (s *Session) Send(data []byte) error {
	return s.Outbox.Push(data)
}
