// Package handlers implements the Telnet session handler that turns typed
// commands into arbiter requests and renders server events as text.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/frontend/telnet"
	"github.com/cory-johannsen/connect4/internal/game/command"
	"github.com/cory-johannsen/connect4/internal/game/connectfour"
	"github.com/cory-johannsen/connect4/internal/game/peer"
	"github.com/cory-johannsen/connect4/internal/observability"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Arbiter is the session arbiter as seen by the Telnet frontend.
type Arbiter interface {
	Connect(remote string) *peer.Peer
	Handle(id peer.ID, req protocol.Request)
	Disconnect(id peer.ID)
}

// GameHandler runs one Connect-Four terminal session per Telnet connection.
type GameHandler struct {
	arbiter  Arbiter
	registry *command.Registry
	logger   *zap.Logger
}

// NewGameHandler creates a GameHandler.
//
// Precondition: arbiter and logger must be non-nil.
func NewGameHandler(arbiter Arbiter, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		arbiter:  arbiter,
		registry: command.DefaultRegistry(),
		logger:   logger,
	}
}

// viewState is the terminal's picture of the room it is seated in, rebuilt
// from server events.
type viewState struct {
	roomID   string
	slot     connectfour.Player
	board    *connectfour.Board
	last     *connectfour.Move
	winning  []connectfour.Coord
	turn     connectfour.Player
	winner   connectfour.Player
	finished bool
}

type view struct {
	mu sync.Mutex
	viewState
}

func newView() *view {
	return &view{viewState: viewState{slot: connectfour.NoPlayer, winner: connectfour.NoPlayer}}
}

func (v *view) seat(roomID string, slot int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewState = viewState{roomID: roomID, slot: connectfour.Player(slot), winner: connectfour.NoPlayer}
}

func (v *view) clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewState = viewState{slot: connectfour.NoPlayer, winner: connectfour.NoPlayer}
}

// show records a board from a game still in progress. Boards that arrive
// after the seat was cleared belong to a room already left and are dropped.
//
// Postcondition: Returns false, leaving the view unchanged, when not seated.
func (v *view) show(board connectfour.Board, last *connectfour.Move, turn connectfour.Player) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.roomID == "" {
		return false
	}
	v.board, v.last, v.turn = &board, last, turn
	v.winning, v.winner, v.finished = nil, connectfour.NoPlayer, false
	return true
}

func (v *view) finish(board connectfour.Board, last *connectfour.Move, winner connectfour.Player, cells []connectfour.Coord) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.roomID == "" {
		return false
	}
	v.board, v.last = &board, last
	v.winning, v.winner, v.finished = cells, winner, true
	return true
}

func (v *view) room() (string, connectfour.Player) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.roomID, v.slot
}

// HandleSession implements telnet.SessionHandler.
//
// Postcondition: The peer is disconnected from the arbiter when this returns.
func (h *GameHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	remote := conn.RemoteAddr().String()
	p := h.arbiter.Connect(remote)
	log := observability.ConnLogger(h.logger, "telnet", p.ID(), remote)

	s := &session{
		conn:     conn,
		peer:     p,
		arbiter:  h.arbiter,
		registry: h.registry,
		logger:   log,
		view:     newView(),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.forwardEvents()
	}()

	err := s.commandLoop(ctx)

	// Disconnect closes the outbox, which ends forwardEvents.
	h.arbiter.Disconnect(p.ID())
	wg.Wait()
	return err
}

type session struct {
	conn     *telnet.Conn
	peer     *peer.Peer
	arbiter  Arbiter
	registry *command.Registry
	logger   *zap.Logger
	view     *view
}

func (s *session) prompt() {
	roomID, slot := s.view.room()
	_ = s.conn.WritePrompt(Prompt(roomID, slot))
}

// say writes lines and re-displays the prompt.
func (s *session) say(lines ...string) {
	_ = s.conn.WriteLines(lines...)
	s.prompt()
}

// commandLoop reads lines and dispatches them until quit or a read error.
//
// Postcondition: Returns nil on quit, ctx.Err() on cancellation, or the read error.
func (s *session) commandLoop(ctx context.Context) error {
	s.say(
		telnet.Colorize(telnet.Bold, "Connect Four"),
		"Type 'create' to open a room or 'join <code>' to join one. 'help' lists commands.",
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		parsed := command.Parse(line)
		if parsed.Command == "" {
			s.prompt()
			continue
		}

		cmd, ok := s.registry.Resolve(parsed.Command)
		if !ok {
			s.say(RenderError(fmt.Sprintf("unknown command %q; type 'help'", parsed.Command)))
			continue
		}

		switch cmd.Handler {
		case command.HandlerQuit:
			_ = s.conn.WriteLine(telnet.Colorize(telnet.Cyan, "Goodbye."))
			return nil
		case command.HandlerHelp:
			s.say(s.registry.HelpLines()...)
		case command.HandlerBoard:
			s.say(s.renderCurrent()...)
		default:
			s.dispatch(cmd, parsed.Args)
		}
	}
}

// dispatch sends a protocol command to the arbiter. Replies arrive through
// the outbox and are rendered by forwardEvents.
func (s *session) dispatch(cmd *command.Command, args []string) {
	roomID, _ := s.view.room()
	req, err := command.Request(cmd, args, roomID)
	if err != nil {
		s.say(RenderError(err.Error()))
		return
	}

	s.logger.Debug("telnet command", zap.String("command", cmd.Name), zap.String("type", req.Type))
	if cmd.Handler == command.HandlerLeave && roomID != "" {
		s.view.clear()
		_ = s.conn.WriteLine(telnet.Colorf(telnet.Cyan, "You left room %s.", roomID))
	}
	s.arbiter.Handle(s.peer.ID(), req)
	if cmd.Handler == command.HandlerLeave && roomID != "" {
		s.prompt()
	}
}

// forwardEvents renders every message queued for the peer until the outbox
// is closed.
func (s *session) forwardEvents() {
	for msg := range s.peer.Outbox() {
		lines := s.apply(msg)
		if len(lines) > 0 {
			_ = s.conn.WriteLines(append([]string{""}, lines...)...)
			s.prompt()
		}
	}
}

// apply folds msg into the view and returns the text to show.
func (s *session) apply(msg protocol.Message) []string {
	v := s.view
	switch p := msg.Payload.(type) {
	case protocol.RoomSeat:
		v.seat(p.RoomID, p.Slot)
		disc := telnet.StripANSI(Disc(connectfour.Player(p.Slot)))
		if msg.Type == protocol.EventRoomCreated {
			return []string{
				telnet.Colorf(telnet.Green, "Room %s created. You play %s.", p.RoomID, disc),
				"Share the code with your opponent; waiting for them to join...",
			}
		}
		return []string{telnet.Colorf(telnet.Green, "Joined room %s. You play %s.", p.RoomID, disc)}

	case protocol.GameState:
		if !v.show(p.Board, p.LastMove, p.CurrentPlayer) {
			s.logger.Debug("dropping board for a room already left", zap.String("type", msg.Type))
			return nil
		}

		var lines []string
		switch msg.Type {
		case protocol.EventGameStart:
			lines = append(lines, telnet.Colorize(telnet.Bold, "Opponent found. Game on!"))
		case protocol.EventGameReset:
			lines = append(lines, telnet.Colorize(telnet.Bold, "The board has been reset."))
		}
		return append(lines, s.renderCurrent()...)

	case protocol.GameOver:
		if !v.finish(p.Board, p.LastMove, p.Winner, p.WinningCells) {
			s.logger.Debug("dropping board for a room already left", zap.String("type", msg.Type))
			return nil
		}
		return s.renderCurrent()

	case protocol.PlayerDisconnected:
		v.clear()
		return []string{telnet.Colorf(telnet.Yellow, "Your opponent left. Room %s is closed.", p.RoomID)}

	case protocol.Error:
		return []string{RenderError(p.Message)}

	default:
		s.logger.Warn("unrenderable message", zap.String("type", msg.Type))
		return nil
	}
}

// renderCurrent draws the board and status line for the seated room.
func (s *session) renderCurrent() []string {
	v := s.view
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.board == nil {
		if v.roomID != "" {
			return []string{"Waiting for an opponent to join room " + v.roomID + "."}
		}
		return []string{"You are not in a game."}
	}
	lines := RenderBoard(*v.board, v.winning, v.last)
	if v.finished {
		return append(lines, RenderOutcome(v.winner, v.slot))
	}
	return append(lines, RenderTurn(v.turn, v.slot))
}
