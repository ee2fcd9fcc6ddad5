package handlers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cory-johannsen/connect4/internal/frontend/telnet"
	"github.com/cory-johannsen/connect4/internal/game/connectfour"
)

// Disc returns the colored glyph for a player's disc.
func Disc(p connectfour.Player) string {
	switch p {
	case connectfour.PlayerOne:
		return telnet.Colorize(telnet.Red, "X")
	case connectfour.PlayerTwo:
		return telnet.Colorize(telnet.Yellow, "O")
	default:
		return telnet.Colorize(telnet.Dim, ".")
	}
}

// RenderBoard draws the board top row first with 1-based column labels.
// Cells in highlight are drawn bold and bright; the last move is underlined
// by a caret below its column.
func RenderBoard(b connectfour.Board, highlight []connectfour.Coord, last *connectfour.Move) []string {
	lines := make([]string, 0, connectfour.Rows+3)

	var header strings.Builder
	header.WriteString(" ")
	for col := 0; col < connectfour.Columns; col++ {
		fmt.Fprintf(&header, " %d", col+1)
	}
	lines = append(lines, telnet.Colorize(telnet.Cyan, header.String()))

	for row := connectfour.Rows - 1; row >= 0; row-- {
		var line strings.Builder
		line.WriteString(telnet.Colorize(telnet.Blue, "|"))
		for col := 0; col < connectfour.Columns; col++ {
			line.WriteString(" ")
			p := b.At(col, row)
			if slices.Contains(highlight, connectfour.Coord{Column: col, Row: row}) {
				line.WriteString(winningDisc(p))
			} else {
				line.WriteString(Disc(p))
			}
		}
		line.WriteString(" ")
		line.WriteString(telnet.Colorize(telnet.Blue, "|"))
		lines = append(lines, line.String())
	}
	lines = append(lines, telnet.Colorize(telnet.Blue, "+"+strings.Repeat("-", 2*connectfour.Columns+1)+"+"))

	if last != nil {
		lines = append(lines, " "+strings.Repeat("  ", last.Column)+" ^")
	}
	return lines
}

func winningDisc(p connectfour.Player) string {
	glyph := "X"
	if p == connectfour.PlayerTwo {
		glyph = "O"
	}
	return telnet.Bold + telnet.BrightYellow + glyph + telnet.Reset
}

// RenderTurn describes whose move it is from the viewer's seat.
func RenderTurn(turn, viewer connectfour.Player) string {
	if turn == viewer {
		return telnet.Colorf(telnet.Green, "Your move (%s). Type: drop <1-%d>", telnet.StripANSI(Disc(viewer)), connectfour.Columns)
	}
	return telnet.Colorf(telnet.Dim, "Waiting for %s to move...", telnet.StripANSI(Disc(turn)))
}

// RenderOutcome announces a finished game from the viewer's seat.
func RenderOutcome(winner, viewer connectfour.Player) string {
	switch {
	case winner == connectfour.NoPlayer:
		return telnet.Colorize(telnet.Cyan, "Draw! The board is full. Type 'reset' for a rematch.")
	case winner == viewer:
		return telnet.Bold + telnet.Colorize(telnet.Green, "You win! Type 'reset' for a rematch.")
	default:
		return telnet.Colorf(telnet.BrightRed, "%s wins. Type 'reset' for a rematch.", telnet.StripANSI(Disc(winner)))
	}
}

// RenderError formats a server or input error.
func RenderError(text string) string {
	return telnet.Colorf(telnet.Red, "Error: %s", text)
}

// Prompt returns the command prompt, showing the room and seat when seated.
func Prompt(roomID string, slot connectfour.Player) string {
	if roomID == "" {
		return telnet.Colorize(telnet.Cyan, "> ")
	}
	return telnet.Colorf(telnet.Cyan, "[%s %s]> ", roomID, telnet.StripANSI(Disc(slot)))
}
