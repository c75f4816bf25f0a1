package gameserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/omok/internal/config"
	"github.com/cory-johannsen/omok/internal/game/lobby"
	"github.com/cory-johannsen/omok/internal/game/session"
	"github.com/cory-johannsen/omok/internal/observability"
)

// Router translates inbound events into registry operations and emits the
// resulting outbound events to session outboxes.
type Router struct {
	registry *lobby.Registry
	sessions *session.Manager
	mode     string
	logger   *zap.Logger
}

// NewRouter creates a Router.
//
// Precondition: registry, sessions and logger must be non-nil; mode must be
// config.ModeNamed or config.ModeLegacy.
func NewRouter(registry *lobby.Registry, sessions *session.Manager, mode string, logger *zap.Logger) *Router {
	return &Router{
		registry: registry,
		sessions: sessions,
		mode:     mode,
		logger:   logger,
	}
}

// Mode returns the matchmaking mode the router was built for.
func (r *Router) Mode() string {
	return r.mode
}

// Connect registers a session for a new connection. In legacy mode the
// session is paired immediately.
//
// Precondition: id must be unique among live connections.
// Postcondition: Returns the live session, or an error if id is in use.
func (r *Router) Connect(id string) (*session.Session, error) {
	s, err := r.sessions.Add(id)
	if err != nil {
		return nil, fmt.Errorf("connecting %s: %w", id, err)
	}
	r.logger.Info("session connected", zap.String("session_id", id))

	if r.mode != config.ModeLegacy {
		return s, nil
	}

	p, err := r.registry.Connect(s)
	if err != nil {
		return s, fmt.Errorf("legacy pairing %s: %w", id, err)
	}
	if p.Waiting() {
		r.send(s, EventWaitingForPlayer, roomRef{Room: p.Room})
		return s, nil
	}
	r.send(s, EventSecond, roomRef{Room: p.Room})
	r.announceStart(p.Room, p.Player1, p.Player2)
	return s, nil
}

// Disconnect releases everything the session held. Only the first call for a
// session has any effect.
func (r *Router) Disconnect(s *session.Session) {
	if _, err := r.sessions.Remove(s.ID); err != nil {
		return
	}
	room := s.Room()
	r.registry.OnDisconnect(s)
	r.logger.Info("session disconnected",
		append(observability.SessionFields(s.ID, s.Nickname()), zap.String("room", room))...,
	)
}

// Dispatch handles one inbound frame. Replies and relays are queued on
// session outboxes; Dispatch never blocks on the network.
func (r *Router) Dispatch(s *session.Session, raw []byte) {
	env, err := Decode(raw)
	if err != nil {
		r.logger.Debug("malformed frame", zap.String("session_id", s.ID), zap.Error(err))
		r.send(s, EventError, failure{Reason: ReasonMalformedPayload})
		return
	}

	switch env.Event {
	case EventRegisterNickname:
		err = r.handleRegisterNickname(s, env)
	case EventGetRooms:
		r.handleGetRooms(s)
	case EventCreateRoomCheck:
		err = r.handleCreateRoomCheck(s, env)
	case EventCreateRoom:
		err = r.handleCreateRoom(s, env)
	case EventJoinRoomCheck:
		err = r.handleJoinRoomCheck(s, env)
	case EventJoinRoom:
		err = r.handleJoinRoom(s, env)
	case EventDoPlayer:
		err = r.handleMove(s, env, EventDoOpponent)
	case EventPlaceStone:
		err = r.handleMove(s, env, EventStonePlaced)
	case EventPlayerEmoji:
		err = r.handleEmoji(s, env)
	case EventSurrender:
		err = r.handleSignal(s, env, EventEscapeOpponent)
	case EventArcadeSuccess:
		err = r.handleSignal(s, env, EventArcadeOpponent)
	case EventLeaveRoom:
		r.handleLeaveRoom(s)
	default:
		r.logger.Debug("unknown event", zap.String("session_id", s.ID), zap.String("event", env.Event))
		r.send(s, EventError, failure{Reason: ReasonUnknownEvent})
		return
	}

	if err != nil {
		r.logger.Debug("malformed payload",
			zap.String("session_id", s.ID),
			zap.String("event", env.Event),
			zap.Error(err),
		)
		r.send(s, EventError, failure{Reason: ReasonMalformedPayload})
	}
}

func (r *Router) handleRegisterNickname(s *session.Session, env Envelope) error {
	var req nicknameRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	if err := s.SetNickname(req.Nickname); err != nil {
		r.send(s, EventRegisterNicknameFailed, failure{Reason: reasonFor(err)})
		return nil
	}
	r.logger.Info("nickname registered", observability.SessionFields(s.ID, s.Nickname())...)
	r.send(s, EventRegisterNicknameSuccess, nicknameResult{Nickname: s.Nickname()})
	return nil
}

func (r *Router) handleGetRooms(s *session.Session) {
	rooms := r.registry.ListRooms()
	out := roomsList{Rooms: make([]roomEntry, len(rooms))}
	for i, room := range rooms {
		out.Rooms[i] = roomEntry{RoomName: room.Name, Mode: room.Mode}
	}
	r.send(s, EventRoomsList, out)
}

func (r *Router) handleCreateRoomCheck(s *session.Session, env Envelope) error {
	var req roomRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	name, err := lobby.NormalizeRoomName(req.RoomName)
	switch {
	case err != nil:
		r.send(s, EventCreateRoomFailed, failure{Reason: reasonFor(err)})
	case !s.Registered():
		r.send(s, EventCreateRoomFailed, failure{Reason: ReasonNotRegistered})
	case !r.registry.CheckCreatable(name):
		r.send(s, EventCreateRoomFailed, failure{Reason: ReasonNameTaken})
	default:
		r.send(s, EventCreateRoomSuccess, roomEntry{RoomName: name, Mode: req.Mode})
	}
	return nil
}

func (r *Router) handleCreateRoom(s *session.Session, env Envelope) error {
	var req roomRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	room, err := r.registry.CreateRoom(s, req.RoomName, req.Mode)
	if err != nil {
		r.send(s, EventCreateRoomFailed, failure{Reason: reasonFor(err)})
		return nil
	}
	r.logger.Info("room created",
		append(observability.SessionFields(s.ID, s.Nickname()),
			zap.String("room", room.Name),
			zap.String("mode", room.Mode),
		)...,
	)
	r.send(s, EventCreateRoom, roomRef{Room: room.Name})
	return nil
}

func (r *Router) handleJoinRoomCheck(s *session.Session, env Envelope) error {
	var req roomRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	summary, ok := r.registry.Lookup(req.RoomName)
	if !ok {
		r.send(s, EventJoinRoomFailed, failure{Reason: ReasonRoomNotFound})
		return nil
	}
	r.send(s, EventJoinRoomSuccess, roomEntry{RoomName: summary.Name, Mode: summary.Mode})
	return nil
}

func (r *Router) handleJoinRoom(s *session.Session, env Envelope) error {
	var req roomRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	match, err := r.registry.JoinRoom(s, req.RoomName)
	if err != nil {
		r.send(s, EventJoinRoomFailed, failure{Reason: reasonFor(err)})
		return nil
	}
	r.send(s, EventJoinRoom, roomRef{Room: match.Room.Name})
	r.announceStart(match.Room.Name, match.Player1, match.Player2)
	return nil
}

// handleMove relays a stone placement to every occupant, the mover included.
func (r *Router) handleMove(s *session.Session, env Envelope, out string) error {
	var req moveRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	r.relay(s, req.Room, out, moveRelay{X: req.X, Y: req.Y, Player: s.DisplayName()}, false)
	return nil
}

func (r *Router) handleEmoji(s *session.Session, env Envelope) error {
	var req emojiRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	r.relay(s, req.Room, EventOpponentEmoji, emojiRelay{Emoji: req.Emoji, Player: s.DisplayName()}, true)
	return nil
}

func (r *Router) handleSignal(s *session.Session, env Envelope, out string) error {
	var req signalRequest
	if err := decodeData(env, &req); err != nil {
		return err
	}
	player := req.Player
	if player == "" {
		player = s.DisplayName()
	}
	r.relay(s, req.Room, out, signalRelay{Player: player}, true)
	return nil
}

func (r *Router) handleLeaveRoom(s *session.Session) {
	name, err := r.registry.LeaveRoom(s)
	if err != nil {
		r.send(s, EventLeaveRoomFailed, failure{Reason: reasonFor(err)})
		return
	}
	r.logger.Info("room left",
		append(observability.SessionFields(s.ID, s.Nickname()), zap.String("room", name))...,
	)
	r.send(s, EventLeaveRoomSuccess, roomRef{Room: name})
}

// relay broadcasts to the named room, defaulting to the sender's own room.
func (r *Router) relay(s *session.Session, room, event string, data any, excludeSelf bool) {
	if room == "" {
		room = s.Room()
	}
	if room == "" {
		return
	}
	payload, err := Encode(event, data)
	if err != nil {
		r.logger.Error("encoding relay", zap.String("event", event), zap.Error(err))
		return
	}
	r.registry.Broadcast(room, payload, s, excludeSelf)
}

// announceStart sends gameStart to both occupants.
func (r *Router) announceStart(room string, player1, player2 *session.Session) {
	start := gameStart{
		Room:    room,
		Player1: player1.DisplayName(),
		Player2: player2.DisplayName(),
	}
	r.send(player1, EventGameStart, start)
	r.send(player2, EventGameStart, start)
	r.logger.Info("game started",
		zap.String("room", room),
		zap.String("player1", start.Player1),
		zap.String("player2", start.Player2),
	)
}

// send encodes and queues one event for s. Delivery failures are logged and
// absorbed; the peer may already be gone.
func (r *Router) send(s *session.Session, event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		r.logger.Error("encoding event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := s.Send(payload); err != nil {
		r.logger.Warn("dropping event",
			zap.String("session_id", s.ID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// reasonFor maps a matchmaking or registration error to its wire reason.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, lobby.ErrNameTaken):
		return ReasonNameTaken
	case errors.Is(err, lobby.ErrRoomNotFound):
		return ReasonRoomNotFound
	case errors.Is(err, lobby.ErrNotRegistered):
		return ReasonNotRegistered
	case errors.Is(err, lobby.ErrAlreadyInRoom):
		return ReasonAlreadyInRoom
	case errors.Is(err, lobby.ErrNotInRoom):
		return ReasonNotInRoom
	case errors.Is(err, lobby.ErrInvalidRoomName):
		return ReasonInvalidRoomName
	case errors.Is(err, session.ErrEmptyNickname):
		return ReasonEmptyNickname
	case errors.Is(err, session.ErrNicknameTooLong):
		return ReasonNicknameTooLong
	case errors.Is(err, session.ErrNicknameSet):
		return ReasonNicknameSet
	case errors.Is(err, session.ErrAlreadyMatched):
		return ReasonAlreadyMatched
	default:
		return ReasonInternal
	}
}
