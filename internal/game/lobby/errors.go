package lobby

import "errors"

var (
	// ErrNameTaken is returned when creating a room whose name is in use.
	ErrNameTaken = errors.New("room name taken")
	// ErrRoomNotFound is returned when joining a room that is not waiting.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotRegistered is returned for matchmaking before a nickname is set.
	ErrNotRegistered = errors.New("nickname not registered")
	// ErrAlreadyInRoom is returned when a session that already occupies a
	// room tries to create or join another.
	ErrAlreadyInRoom = errors.New("session already in a room")
	// ErrNotInRoom is returned when leaving without occupying a room.
	ErrNotInRoom = errors.New("session not in a room")
	// ErrInvalidRoomName is returned for blank or oversized room names.
	ErrInvalidRoomName = errors.New("invalid room name")
)
