package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/connect4/internal/game/connectfour"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Input errors reported to the player before anything reaches the server.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrNoRoom         = errors.New("you are not in a room")
)

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command.
	Args []string
}

// Parse splits a text line into a command word and arguments.
//
// Postcondition: Returns a ParseResult. If line is blank, Command is empty.
func Parse(line string) ParseResult {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ParseResult{}
	}
	res := ParseResult{Command: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		res.Args = fields[1:]
	}
	return res
}

// ParseColumn converts a 1-based column label as typed by a player to a
// 0-based board column.
//
// Postcondition: Returns a column in [0, connectfour.Columns), or an error.
func ParseColumn(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > connectfour.Columns {
		return 0, fmt.Errorf("column must be a number from 1 to %d, got %q", connectfour.Columns, arg)
	}
	return n - 1, nil
}

// Request translates a resolved command into an arbiter request. roomID is
// the room the session is currently seated in, or "".
//
// Precondition: cmd must be a command with a protocol handler.
// Postcondition: Returns a Request, or an error describing bad input.
func Request(cmd *Command, args []string, roomID string) (protocol.Request, error) {
	switch cmd.Handler {
	case HandlerCreate:
		return protocol.Request{Type: protocol.EventCreateRoom}, nil
	case HandlerJoin:
		if len(args) != 1 {
			return protocol.Request{}, fmt.Errorf("%w: %s", ErrUsage, cmd.Usage)
		}
		return protocol.Request{Type: protocol.EventJoinRoom, RoomID: args[0]}, nil
	case HandlerLeave:
		return protocol.Request{Type: protocol.EventLeaveRoom, RoomID: roomID}, nil
	case HandlerDrop:
		if len(args) != 1 {
			return protocol.Request{}, fmt.Errorf("%w: %s", ErrUsage, cmd.Usage)
		}
		col, err := ParseColumn(args[0])
		if err != nil {
			return protocol.Request{}, err
		}
		if roomID == "" {
			return protocol.Request{}, ErrNoRoom
		}
		return protocol.Request{Type: protocol.EventMakeMove, RoomID: roomID, Column: col}, nil
	case HandlerReset:
		if roomID == "" {
			return protocol.Request{}, ErrNoRoom
		}
		return protocol.Request{Type: protocol.EventResetRoom, RoomID: roomID}, nil
	default:
		return protocol.Request{}, fmt.Errorf("%w: %q has no server request", ErrUnknownCommand, cmd.Name)
	}
}
