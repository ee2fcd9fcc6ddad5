// Package connectfour implements the Connect-Four board, move application,
// and terminal detection for a single game session.
package connectfour

import (
	"encoding/json"
	"fmt"
)

// Board dimensions and the run length that wins.
const (
	Columns       = 7
	Rows          = 6
	ConnectLength = 4
)

// Player identifies a seat at the board. Player values double as room slots.
type Player int

const (
	// NoPlayer marks an empty cell. It is also the winner recorded for a draw.
	NoPlayer  Player = -1
	PlayerOne Player = 0
	PlayerTwo Player = 1
)

// Valid reports whether p is one of the two seated players.
func (p Player) Valid() bool {
	return p == PlayerOne || p == PlayerTwo
}

// Next returns the player who moves after p.
//
// Precondition: p.Valid().
func (p Player) Next() Player {
	return (p + 1) % 2
}

func (p Player) String() string {
	if !p.Valid() {
		return "none"
	}
	return fmt.Sprintf("player %d", int(p)+1)
}

// Coord addresses a single cell. Row 0 is the bottom of the column.
type Coord struct {
	Column int `json:"col"`
	Row    int `json:"row"`
}

// InBounds reports whether (col, row) lies on the board.
func InBounds(col, row int) bool {
	return col >= 0 && col < Columns && row >= 0 && row < Rows
}

// Board is a column-major grid: Board[col][row].
//
// Invariant: within a column, occupied cells are contiguous from row 0 upward.
type Board [Columns][Rows]Player

// NewBoard returns a board with every cell empty.
func NewBoard() Board {
	var b Board
	for c := range b {
		for r := range b[c] {
			b[c][r] = NoPlayer
		}
	}
	return b
}

// At returns the owner of the cell, or NoPlayer when empty or out of bounds.
func (b *Board) At(col, row int) Player {
	if !InBounds(col, row) {
		return NoPlayer
	}
	return b[col][row]
}

// Height returns the number of occupied cells in col.
//
// Precondition: 0 <= col < Columns.
func (b *Board) Height(col int) int {
	h := 0
	for h < Rows && b[col][h] != NoPlayer {
		h++
	}
	return h
}

// ColumnFull reports whether the top cell of col is occupied.
//
// Precondition: 0 <= col < Columns.
func (b *Board) ColumnFull(col int) bool {
	return b[col][Rows-1] != NoPlayer
}

// Full reports whether every cell on the board is occupied.
func (b *Board) Full() bool {
	for c := 0; c < Columns; c++ {
		if !b.ColumnFull(c) {
			return false
		}
	}
	return true
}

// drop places p at the landing row of col and returns that row.
//
// Precondition: col is in range and not full.
func (b *Board) drop(col int, p Player) int {
	row := b.Height(col)
	b[col][row] = p
	return row
}

// directions are the four line vectors a run can follow:
// horizontal, vertical, and both diagonals.
var directions = [4]Coord{
	{Column: 1, Row: 0},
	{Column: 0, Row: 1},
	{Column: 1, Row: 1},
	{Column: 1, Row: -1},
}

// WinningLine returns the first run of ConnectLength cells owned by the
// occupant of (col, row) that passes through (col, row).
//
// The line through the anchor is scanned at offsets -3..+3 along each
// direction; the counter resets on a mismatch or an off-board cell.
//
// Postcondition: Returns exactly ConnectLength coordinates, or nil when the
// anchor is empty or no run exists.
func (b *Board) WinningLine(col, row int) []Coord {
	owner := b.At(col, row)
	if owner == NoPlayer {
		return nil
	}
	reach := ConnectLength - 1
	for _, d := range directions {
		run := make([]Coord, 0, ConnectLength)
		for i := -reach; i <= reach; i++ {
			c, r := col+i*d.Column, row+i*d.Row
			if b.At(c, r) != owner {
				run = run[:0]
				continue
			}
			run = append(run, Coord{Column: c, Row: r})
			if len(run) == ConnectLength {
				return run
			}
		}
	}
	return nil
}

// MarshalJSON encodes the board column-major with null for empty cells.
func (b Board) MarshalJSON() ([]byte, error) {
	out := make([][]*int, Columns)
	for c := range b {
		out[c] = make([]*int, Rows)
		for r, p := range b[c] {
			if p == NoPlayer {
				continue
			}
			v := int(p)
			out[c][r] = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (b *Board) UnmarshalJSON(data []byte) error {
	var in [][]*int
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in) != Columns {
		return fmt.Errorf("board has %d columns, want %d", len(in), Columns)
	}
	fresh := NewBoard()
	for c := range in {
		if len(in[c]) != Rows {
			return fmt.Errorf("column %d has %d rows, want %d", c, len(in[c]), Rows)
		}
		for r, v := range in[c] {
			if v == nil {
				continue
			}
			p := Player(*v)
			if !p.Valid() {
				return fmt.Errorf("cell (%d,%d) holds invalid player %d", c, r, *v)
			}
			fresh[c][r] = p
		}
	}
	*b = fresh
	return nil
}
