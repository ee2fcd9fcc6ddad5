package connectfour

import "errors"

// Move rejections. Each leaves the game unchanged.
var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrColumnFull    = errors.New("column is full")
	ErrInvalidColumn = errors.New("invalid column")
	ErrGameOver      = errors.New("game is over")
)

// Move records an accepted drop.
type Move struct {
	Column int    `json:"column"`
	Row    int    `json:"row"`
	Player Player `json:"player"`
}

// Outcome describes whether a game has ended and how.
type Outcome struct {
	Terminal bool
	// Winner is NoPlayer on a draw or while the game is running.
	Winner Player
	// Line holds the winning run; empty on a draw.
	Line []Coord
}

// IsDraw reports whether the game ended with a full board and no winner.
func (o Outcome) IsDraw() bool {
	return o.Terminal && o.Winner == NoPlayer
}

// MoveResult is returned for an accepted move.
type MoveResult struct {
	Move    Move
	Outcome Outcome
}

// Game is the mutable state of one Connect-Four session. It is not safe for
// concurrent use; the owning room serializes access.
type Game struct {
	board   Board
	turn    Player
	outcome Outcome
}

// NewGame returns a game with an empty board and PlayerOne to move.
func NewGame() *Game {
	g := &Game{}
	g.Reset()
	return g
}

// Reset clears the board, hands the turn to PlayerOne, and clears any
// terminal outcome.
func (g *Game) Reset() {
	g.board = NewBoard()
	g.turn = PlayerOne
	g.outcome = Outcome{Winner: NoPlayer}
}

// Board returns a copy of the current board.
func (g *Game) Board() Board { return g.board }

// Turn returns the player whose move it is.
func (g *Game) Turn() Player { return g.turn }

// Outcome returns the terminal state of the game.
func (g *Game) Outcome() Outcome { return g.outcome }

// ApplyMove drops p's piece into col.
//
// Checks run in this order: game over, column range, turn, column full.
// On a win or draw the outcome becomes terminal and the turn is not advanced;
// otherwise the turn passes to the other player.
//
// Postcondition: On error the game is unchanged.
func (g *Game) ApplyMove(p Player, col int) (MoveResult, error) {
	if g.outcome.Terminal {
		return MoveResult{}, ErrGameOver
	}
	if col < 0 || col >= Columns {
		return MoveResult{}, ErrInvalidColumn
	}
	if p != g.turn {
		return MoveResult{}, ErrNotYourTurn
	}
	if g.board.ColumnFull(col) {
		return MoveResult{}, ErrColumnFull
	}

	row := g.board.drop(col, p)
	move := Move{Column: col, Row: row, Player: p}

	if line := g.board.WinningLine(col, row); line != nil {
		g.outcome = Outcome{Terminal: true, Winner: p, Line: line}
	} else if g.board.Full() {
		g.outcome = Outcome{Terminal: true, Winner: NoPlayer}
	} else {
		g.turn = g.turn.Next()
	}

	return MoveResult{Move: move, Outcome: g.outcome}, nil
}
