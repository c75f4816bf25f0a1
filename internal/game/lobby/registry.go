package lobby

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cory-johannsen/omok/internal/game/session"
)

// MaxRoomNameLength is the longest accepted room name, in runes.
const MaxRoomNameLength = 40

// Observer is notified when a room enters or leaves the waiting set.
// Calls are made while the registry lock is held, in mutation order, so
// implementations must return promptly and must not call back into the Registry.
type Observer interface {
	RoomOpened(room Summary)
	RoomClosed(name string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver registers an Observer for waiting-set changes.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// Registry owns all room state. Every mutation runs as a single critical
// section under one mutex and performs no I/O, so check-then-act sequences
// ("name absent, insert" and "room present, remove") are atomic with respect
// to each other.
//
// CheckJoinable and CheckCreatable are advisory: their answer may be stale by
// the time the caller acts, and CreateRoom/JoinRoom may still fail afterwards.
type Registry struct {
	mu      sync.Mutex
	waiting map[string]*Room
	seq     uint64
	// queue is the legacy-mode waiting list; the last entry is paired first.
	queue  []*session.Session
	groups map[string]map[string]*session.Session

	observer Observer
	logger   *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		waiting: make(map[string]*Room),
		groups:  make(map[string]map[string]*session.Session),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListRooms returns a snapshot of all waiting rooms in creation order.
func (r *Registry) ListRooms() []Summary {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.waiting))
	for _, room := range r.waiting {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].seq < rooms[j].seq })
	out := make([]Summary, len(rooms))
	for i, room := range rooms {
		out[i] = Summary{Name: room.Name, Mode: room.Mode}
	}
	return out
}

// CheckJoinable reports whether a waiting room with the given name exists.
func (r *Registry) CheckJoinable(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Lookup returns the summary of the named waiting room.
func (r *Registry) Lookup(name string) (Summary, bool) {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.waiting[name]
	if !ok {
		return Summary{}, false
	}
	return Summary{Name: room.Name, Mode: room.Mode}, true
}

// CheckCreatable reports whether a room with the given name could be created now.
func (r *Registry) CheckCreatable(name string) bool {
	name, err := NormalizeRoomName(name)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.nameInUse(name)
}

// CreateRoom registers a waiting room owned by s.
//
// Precondition: s must be non-nil.
// Postcondition: On success the room is listed, s holds the back-reference and
// is the only member of the room's broadcast group. On failure the registry is
// unchanged and the error is ErrNotRegistered, ErrInvalidRoomName,
// ErrAlreadyInRoom or ErrNameTaken.
func (r *Registry) CreateRoom(s *session.Session, name, mode string) (Room, error) {
	if !s.Registered() {
		return Room{}, ErrNotRegistered
	}
	name, err := NormalizeRoomName(name)
	if err != nil {
		return Room{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Room() != "" {
		return Room{}, ErrAlreadyInRoom
	}
	if r.nameInUse(name) {
		return Room{}, ErrNameTaken
	}

	r.seq++
	room := &Room{
		Name:    name,
		Mode:    mode,
		Creator: s,
		State:   StateWaiting,
		seq:     r.seq,
	}
	r.waiting[name] = room
	r.addMember(name, s)
	s.BindRoom(name)
	if r.observer != nil {
		r.observer.RoomOpened(Summary{Name: name, Mode: mode})
	}

	r.logger.Debug("room created",
		zap.String("room", name),
		zap.String("mode", mode),
		zap.String("creator", s.ID),
	)
	return *room, nil
}

// JoinRoom makes s the second occupant of the waiting room name. Of any number
// of concurrent joiners for the same room exactly one succeeds.
//
// Precondition: s must be non-nil.
// Postcondition: On success the room is removed from the waiting set and the
// returned Match holds both occupants with Room.State == StateActive. On
// failure the registry is unchanged and the error is ErrNotRegistered,
// ErrAlreadyInRoom or ErrRoomNotFound.
func (r *Registry) JoinRoom(s *session.Session, name string) (Match, error) {
	if !s.Registered() {
		return Match{}, ErrNotRegistered
	}
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Room() != "" {
		return Match{}, ErrAlreadyInRoom
	}
	room, ok := r.waiting[name]
	if !ok {
		return Match{}, ErrRoomNotFound
	}

	delete(r.waiting, name)
	if r.observer != nil {
		r.observer.RoomClosed(name)
	}
	r.addMember(name, s)
	s.BindRoom(name)

	active := *room
	active.State = StateActive

	r.logger.Debug("room joined",
		zap.String("room", name),
		zap.String("creator", room.Creator.ID),
		zap.String("joiner", s.ID),
	)
	return Match{Room: active, Player1: room.Creator, Player2: s}, nil
}

// LeaveRoom removes s from the room it occupies while keeping the session
// alive, so it can matchmake again.
//
// Postcondition: Returns the name of the room left, or ErrNotInRoom.
func (r *Registry) LeaveRoom(s *session.Session) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Room()
	if name == "" {
		return "", ErrNotInRoom
	}
	r.release(s, name)
	r.dequeue(s)
	return name, nil
}

// OnDisconnect reclaims everything s owns: its waiting room, its place in the
// legacy queue and its broadcast group membership. It never fails and is a
// no-op for sessions that never matchmade or were already cleaned up.
func (r *Registry) OnDisconnect(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name := s.Room(); name != "" {
		r.release(s, name)
	}
	r.dequeue(s)
}

// Broadcast delivers payload to the members of the named room's broadcast
// group. When sender is non-nil it must be a current member, otherwise nothing
// is sent; with excludeSelf the sender does not receive its own payload.
// A missing or empty group is not an error.
//
// Postcondition: Returns the number of sessions the payload was queued for.
func (r *Registry) Broadcast(name string, payload []byte, sender *session.Session, excludeSelf bool) int {
	r.mu.Lock()
	members := r.groups[name]
	if sender != nil && members[sender.ID] != sender {
		r.mu.Unlock()
		r.logger.Debug("broadcast from non-member dropped",
			zap.String("room", name),
			zap.String("sender", sender.ID),
		)
		return 0
	}
	recipients := make([]*session.Session, 0, len(members))
	for _, m := range members {
		if excludeSelf && m == sender {
			continue
		}
		recipients = append(recipients, m)
	}
	r.mu.Unlock()

	delivered := 0
	for _, m := range recipients {
		if err := m.Send(payload); err != nil {
			r.logger.Warn("dropping event for session",
				zap.String("room", name),
				zap.String("session_id", m.ID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// Occupants returns the current members of the named room's broadcast group.
func (r *Registry) Occupants(name string) []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.groups[name]
	out := make([]*session.Session, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out
}

// Stats returns the current registry counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		WaitingRooms:    len(r.waiting),
		QueuedSessions:  len(r.queue),
		BroadcastGroups: len(r.groups),
	}
}

// nameInUse reports whether name is waiting or still has occupants in play.
// Caller must hold r.mu.
func (r *Registry) nameInUse(name string) bool {
	if _, ok := r.waiting[name]; ok {
		return true
	}
	return len(r.groups[name]) > 0
}

// release drops s from room name: the waiting entry if s created it, the
// group membership and the back-reference. Caller must hold r.mu.
func (r *Registry) release(s *session.Session, name string) {
	if room, ok := r.waiting[name]; ok && room.Creator == s {
		delete(r.waiting, name)
		if r.observer != nil {
			r.observer.RoomClosed(name)
		}
		r.logger.Debug("waiting room abandoned",
			zap.String("room", name),
			zap.String("creator", s.ID),
		)
	}
	r.removeMember(name, s)
	s.ReleaseRoom(name)
}

// addMember adds s to the broadcast group for name. Caller must hold r.mu.
func (r *Registry) addMember(name string, s *session.Session) {
	members, ok := r.groups[name]
	if !ok {
		members = make(map[string]*session.Session, 2)
		r.groups[name] = members
	}
	members[s.ID] = s
}

// removeMember removes s from the broadcast group for name and deletes the
// group once empty. Caller must hold r.mu.
func (r *Registry) removeMember(name string, s *session.Session) {
	members, ok := r.groups[name]
	if !ok {
		return
	}
	if members[s.ID] == s {
		delete(members, s.ID)
	}
	if len(members) == 0 {
		delete(r.groups, name)
	}
}

// NormalizeRoomName trims name and checks it is non-blank and at most
// MaxRoomNameLength runes.
func NormalizeRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxRoomNameLength {
		return "", ErrInvalidRoomName
	}
	return name, nil
}
