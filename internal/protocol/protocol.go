// Package protocol defines the event vocabulary exchanged between peers and
// the session arbiter, independent of any transport.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cory-johannsen/connect4/internal/game/connectfour"
)

// Events sent by peers.
const (
	EventCreateRoom = "createRoom"
	EventJoinRoom   = "joinRoom"
	EventMakeMove   = "makeMove"
	EventResetRoom  = "resetRoom"
	EventLeaveRoom  = "leaveRoom"
)

// Events sent by the server.
const (
	EventRoomCreated        = "roomCreated"
	EventJoinedRoom         = "joinedRoom"
	EventGameStart          = "gameStart"
	EventGameUpdate         = "gameUpdate"
	EventGameOver           = "gameOver"
	EventGameReset          = "gameReset"
	EventPlayerDisconnected = "playerDisconnected"
	EventError              = "error"
)

// Decoding failures.
var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownEvent = errors.New("unknown event")
)

// Request is a decoded peer intent. Fields not used by Type are zero.
type Request struct {
	Type   string
	RoomID string
	Column int
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
	Column *int   `json:"column"`
}

// DecodeRequest parses a JSON envelope of the form
// {"type": "...", "payload": {...}}.
//
// joinRoom, resetRoom, and leaveRoom also accept a bare string payload
// holding the room id.
//
// Postcondition: Returns a Request, or an error wrapping ErrMalformed or
// ErrUnknownEvent.
func DecodeRequest(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	req := Request{Type: env.Type}
	switch env.Type {
	case EventCreateRoom:
		return req, nil
	case EventJoinRoom, EventResetRoom, EventLeaveRoom:
		p, err := decodeRoomPayload(env.Payload)
		if err != nil {
			return Request{}, err
		}
		if env.Type == EventJoinRoom && p.RoomID == "" {
			return Request{}, fmt.Errorf("%w: %s requires roomId", ErrMalformed, env.Type)
		}
		req.RoomID = p.RoomID
		return req, nil
	case EventMakeMove:
		p, err := decodeRoomPayload(env.Payload)
		if err != nil {
			return Request{}, err
		}
		if p.Column == nil {
			return Request{}, fmt.Errorf("%w: makeMove requires column", ErrMalformed)
		}
		req.RoomID = p.RoomID
		req.Column = *p.Column
		return req, nil
	case "":
		return Request{}, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func decodeRoomPayload(raw json.RawMessage) (roomPayload, error) {
	var p roomPayload
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p, nil
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &p.RoomID); err != nil {
			return p, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p, nil
}

// Message is a server event addressed to one or more peers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Encode renders m as a JSON envelope.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Type, err)
	}
	return data, nil
}

// RoomSeat is the payload of roomCreated and joinedRoom.
type RoomSeat struct {
	RoomID string `json:"roomId"`
	Slot   int    `json:"slot"`
}

// GameState is the payload of gameStart, gameUpdate, and gameReset.
type GameState struct {
	Board         connectfour.Board  `json:"board"`
	CurrentPlayer connectfour.Player `json:"currentPlayer"`
	LastMove      *connectfour.Move  `json:"lastMove,omitempty"`
}

// GameOver is the payload of gameOver. Winner is -1 on a draw.
type GameOver struct {
	Winner       connectfour.Player  `json:"winner"`
	Board        connectfour.Board   `json:"board"`
	LastMove     *connectfour.Move   `json:"lastMove,omitempty"`
	WinningCells []connectfour.Coord `json:"winningCells"`
}

// PlayerDisconnected is the payload of playerDisconnected.
type PlayerDisconnected struct {
	RoomID string `json:"roomId"`
}

// Error is the payload of error.
type Error struct {
	Message string `json:"message"`
}

// RoomCreated tells the creator its room code and seat.
func RoomCreated(roomID string, slot int) Message {
	return Message{Type: EventRoomCreated, Payload: RoomSeat{RoomID: roomID, Slot: slot}}
}

// JoinedRoom tells the joiner the room code and its seat.
func JoinedRoom(roomID string, slot int) Message {
	return Message{Type: EventJoinedRoom, Payload: RoomSeat{RoomID: roomID, Slot: slot}}
}

// GameStart announces that both seats are filled and play begins.
func GameStart(board connectfour.Board, turn connectfour.Player) Message {
	return Message{Type: EventGameStart, Payload: GameState{Board: board, CurrentPlayer: turn}}
}

// GameUpdate carries the board after an accepted, non-terminal move.
func GameUpdate(board connectfour.Board, turn connectfour.Player, last connectfour.Move) Message {
	return Message{Type: EventGameUpdate, Payload: GameState{Board: board, CurrentPlayer: turn, LastMove: &last}}
}

// GameReset carries the cleared board after a reset.
func GameReset(board connectfour.Board, turn connectfour.Player) Message {
	return Message{Type: EventGameReset, Payload: GameState{Board: board, CurrentPlayer: turn}}
}

// GameEnded builds the gameOver message for a terminal outcome.
//
// Precondition: outcome.Terminal.
func GameEnded(outcome connectfour.Outcome, board connectfour.Board, last connectfour.Move) Message {
	cells := outcome.Line
	if cells == nil {
		cells = []connectfour.Coord{}
	}
	return Message{Type: EventGameOver, Payload: GameOver{
		Winner:       outcome.Winner,
		Board:        board,
		LastMove:     &last,
		WinningCells: cells,
	}}
}

// PeerLeft tells the remaining occupant that roomID has been closed.
func PeerLeft(roomID string) Message {
	return Message{Type: EventPlayerDisconnected, Payload: PlayerDisconnected{RoomID: roomID}}
}

// Failure is a private error reply to a rejected request.
func Failure(text string) Message {
	return Message{Type: EventError, Payload: Error{Message: text}}
}
