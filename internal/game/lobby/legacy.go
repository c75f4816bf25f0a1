package lobby

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/omok/internal/game/session"
)

// LegacyRoomName returns the room name generated for a session that starts
// waiting in legacy mode.
func LegacyRoomName(s *session.Session) string {
	return "room-" + s.ID
}

// Connect performs legacy anonymous pairing for a newly connected session.
//
// If sessions are queued, the most recently queued one is popped as Player1
// and s joins its room as Player2. Otherwise s gets a generated room, joins
// it, and is queued. Pairing from the end of the queue is deliberate: the
// last waiting player is matched first.
//
// Precondition: s must be non-nil.
// Postcondition: Returns the Pairing, or ErrAlreadyInRoom if s already holds
// a room.
func (r *Registry) Connect(s *session.Session) (Pairing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Room() != "" {
		return Pairing{}, ErrAlreadyInRoom
	}

	if n := len(r.queue); n > 0 {
		player1 := r.queue[n-1]
		r.queue[n-1] = nil
		r.queue = r.queue[:n-1]

		name := player1.Room()
		if r.observer != nil {
			r.observer.RoomClosed(name)
		}
		r.addMember(name, s)
		s.BindRoom(name)

		r.logger.Debug("legacy pairing",
			zap.String("room", name),
			zap.String("player1", player1.ID),
			zap.String("player2", s.ID),
		)
		return Pairing{Room: name, Player1: player1, Player2: s}, nil
	}

	name := LegacyRoomName(s)
	r.addMember(name, s)
	s.BindRoom(name)
	r.queue = append(r.queue, s)
	if r.observer != nil {
		r.observer.RoomOpened(Summary{Name: name})
	}

	r.logger.Debug("legacy waiting",
		zap.String("room", name),
		zap.String("player1", s.ID),
	)
	return Pairing{Room: name, Player1: s}, nil
}

// Queued returns the number of sessions waiting in the legacy queue.
func (r *Registry) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// dequeue removes s from the legacy queue if present. Caller must hold r.mu.
func (r *Registry) dequeue(s *session.Session) {
	for i, q := range r.queue {
		if q != s {
			continue
		}
		copy(r.queue[i:], r.queue[i+1:])
		r.queue[len(r.queue)-1] = nil
		r.queue = r.queue[:len(r.queue)-1]
		if r.observer != nil {
			r.observer.RoomClosed(LegacyRoomName(s))
		}
		return
	}
}
