// Package lobby implements matchmaking: the registry of rooms waiting for a
// second player, the broadcast groups of rooms in play, and the legacy
// anonymous pairing queue.
package lobby

import (
	"github.com/cory-johannsen/omok/internal/game/session"
)

// State is the lifecycle stage of a room.
type State int

const (
	// StateWaiting rooms have one occupant and are discoverable.
	StateWaiting State = iota
	// StateActive rooms have two occupants and are no longer discoverable.
	// Active rooms are never stored; the state only appears on returned values.
	StateActive
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Room is one pending or active match.
type Room struct {
	Name    string
	Mode    string
	Creator *session.Session
	State   State

	seq uint64
}

// Summary is the discoverable view of a waiting room.
type Summary struct {
	Name string
	Mode string
}

// Match is the result of a successful join: both occupants of a room that
// just became active.
type Match struct {
	Room    Room
	Player1 *session.Session
	Player2 *session.Session
}

// Pairing is the result of a legacy-mode connect. Player2 is nil while the
// connecting session waits for an opponent.
type Pairing struct {
	Room    string
	Player1 *session.Session
	Player2 *session.Session
}

// Waiting reports whether the pairing is still looking for a second player.
func (p Pairing) Waiting() bool {
	return p.Player2 == nil
}

// Stats is a point-in-time count of registry contents.
type Stats struct {
	WaitingRooms    int
	QueuedSessions  int
	BroadcastGroups int
}
