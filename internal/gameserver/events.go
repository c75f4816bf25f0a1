package gameserver

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event names.
const (
	EventRegisterNickname = "registerNickname"
	EventGetRooms         = "getRooms"
	EventCreateRoomCheck  = "createRoomCheck"
	EventCreateRoom       = "createRoom"
	EventJoinRoomCheck    = "joinRoomCheck"
	EventJoinRoom         = "joinRoom"
	EventDoPlayer         = "doPlayer"
	EventPlaceStone       = "placeStone"
	EventPlayerEmoji      = "playerEmoji"
	EventSurrender        = "surrender"
	EventArcadeSuccess    = "arcadeSuccess"
	EventLeaveRoom        = "leaveRoom"
)

// Outbound event names. EventCreateRoom and EventJoinRoom double as acks.
const (
	EventRegisterNicknameSuccess = "registerNicknameSuccess"
	EventRegisterNicknameFailed  = "registerNicknameFailed"
	EventRoomsList               = "roomsList"
	EventCreateRoomSuccess       = "createRoomSuccess"
	EventCreateRoomFailed        = "createRoomFailed"
	EventJoinRoomSuccess         = "joinRoomSuccess"
	EventJoinRoomFailed          = "joinRoomFailed"
	EventGameStart               = "gameStart"
	EventDoOpponent              = "doOpponent"
	EventStonePlaced             = "stonePlaced"
	EventOpponentEmoji           = "opponentEmoji"
	EventEscapeOpponent          = "escapeOpponent"
	EventArcadeOpponent          = "arcadeOpponent"
	EventLeaveRoomSuccess        = "leaveRoomSuccess"
	EventLeaveRoomFailed         = "leaveRoomFailed"
	EventWaitingForPlayer        = "waitingForPlayer"
	EventSecond                  = "second"
	EventError                   = "error"
)

// Failure reasons carried in *Failed and error events.
const (
	ReasonNameTaken        = "name_taken"
	ReasonRoomNotFound     = "room_not_found"
	ReasonNotRegistered    = "not_registered"
	ReasonAlreadyInRoom    = "already_in_room"
	ReasonNotInRoom        = "not_in_room"
	ReasonInvalidRoomName  = "invalid_room_name"
	ReasonEmptyNickname    = "empty_nickname"
	ReasonNicknameTooLong  = "nickname_too_long"
	ReasonNicknameSet      = "nickname_set"
	ReasonAlreadyMatched   = "already_matched"
	ReasonUnknownEvent     = "unknown event"
	ReasonMalformedPayload = "malformed payload"
	ReasonInternal         = "internal error"
)

// ErrMalformedEnvelope is returned by Decode for frames that are not a JSON
// object with a non-empty event name.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the wire frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound event.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses an inbound frame.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedEnvelope)
	}
	return env, nil
}

// decodeData unmarshals an envelope payload into v. An absent payload leaves
// v at its zero value.
func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, v)
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

type nicknameResult struct {
	Nickname string `json:"nickname"`
}

type roomRequest struct {
	RoomName string `json:"roomName"`
	Mode     string `json:"mode,omitempty"`
}

type roomEntry struct {
	RoomName string `json:"roomName"`
	Mode     string `json:"mode"`
}

type roomsList struct {
	Rooms []roomEntry `json:"rooms"`
}

type roomRef struct {
	Room string `json:"room"`
}

type failure struct {
	Reason string `json:"reason"`
}

type gameStart struct {
	Room    string `json:"room"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

// Coordinates are relayed verbatim; the server never interprets the board.
type moveRequest struct {
	Room string          `json:"room"`
	X    json.RawMessage `json:"x,omitempty"`
	Y    json.RawMessage `json:"y,omitempty"`
}

type moveRelay struct {
	X      json.RawMessage `json:"x,omitempty"`
	Y      json.RawMessage `json:"y,omitempty"`
	Player string          `json:"player"`
}

type emojiRequest struct {
	Room  string          `json:"room"`
	Emoji json.RawMessage `json:"emoji,omitempty"`
}

type emojiRelay struct {
	Emoji  json.RawMessage `json:"emoji,omitempty"`
	Player string          `json:"player"`
}

type signalRequest struct {
	Room   string `json:"room"`
	Player string `json:"player,omitempty"`
}

type signalRelay struct {
	Player string `json:"player"`
}
