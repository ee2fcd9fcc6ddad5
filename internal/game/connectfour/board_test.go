package connectfour

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewBoard_AllEmpty(t *testing.T) {
	b := NewBoard()
	for c := 0; c < Columns; c++ {
		assert.Equal(t, 0, b.Height(c))
		for r := 0; r < Rows; r++ {
			assert.Equal(t, NoPlayer, b.At(c, r))
		}
	}
	assert.False(t, b.Full())
}

func TestBoard_AtOutOfBounds(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, NoPlayer, b.At(-1, 0))
	assert.Equal(t, NoPlayer, b.At(0, Rows))
	assert.Equal(t, NoPlayer, b.At(Columns, 0))
}

func TestBoard_DropStacksFromBottom(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, 0, b.drop(3, PlayerOne))
	assert.Equal(t, 1, b.drop(3, PlayerTwo))
	assert.Equal(t, 2, b.Height(3))
	assert.Equal(t, PlayerOne, b.At(3, 0))
	assert.Equal(t, PlayerTwo, b.At(3, 1))
}

func TestBoard_WinningLineEmptyAnchor(t *testing.T) {
	b := NewBoard()
	assert.Nil(t, b.WinningLine(0, 0))
}

func TestBoard_WinningLineHorizontal(t *testing.T) {
	b := NewBoard()
	for c := 1; c <= 4; c++ {
		b[c][0] = PlayerTwo
	}
	line := b.WinningLine(2, 0)
	assert.Equal(t, []Coord{{1, 0}, {2, 0}, {3, 0}, {4, 0}}, line)
}

func TestBoard_WinningLineReportsFirstFourOfLongerRun(t *testing.T) {
	b := NewBoard()
	for c := 0; c < 5; c++ {
		b[c][0] = PlayerOne
	}
	line := b.WinningLine(4, 0)
	assert.Equal(t, []Coord{{1, 0}, {2, 0}, {3, 0}, {4, 0}}, line)
}

func TestBoard_WinningLineDiagonals(t *testing.T) {
	rising := NewBoard()
	for i := 0; i < 4; i++ {
		rising[i+2][i] = PlayerOne
	}
	assert.Len(t, rising.WinningLine(3, 1), ConnectLength)

	falling := NewBoard()
	for i := 0; i < 4; i++ {
		falling[i][3-i] = PlayerTwo
	}
	assert.Equal(t, []Coord{{0, 3}, {1, 2}, {2, 1}, {3, 0}}, falling.WinningLine(0, 3))
}

func TestBoard_WinningLineBrokenRun(t *testing.T) {
	b := NewBoard()
	b[0][0] = PlayerOne
	b[1][0] = PlayerOne
	b[2][0] = PlayerTwo
	b[3][0] = PlayerOne
	b[4][0] = PlayerOne
	assert.Nil(t, b.WinningLine(3, 0))
}

func TestBoard_JSONColumnMajorWithNulls(t *testing.T) {
	b := NewBoard()
	b.drop(0, PlayerOne)
	b.drop(0, PlayerTwo)
	b.drop(6, PlayerTwo)

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var raw [][]*int
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, Columns)
	for _, col := range raw {
		assert.Len(t, col, Rows)
	}
	require.NotNil(t, raw[0][0])
	assert.Equal(t, 0, *raw[0][0])
	require.NotNil(t, raw[0][1])
	assert.Equal(t, 1, *raw[0][1])
	assert.Nil(t, raw[0][2])
	require.NotNil(t, raw[6][0])
	assert.Equal(t, 1, *raw[6][0])

	var decoded Board
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b, decoded)
}

func TestBoard_UnmarshalRejectsBadShape(t *testing.T) {
	var b Board
	assert.Error(t, json.Unmarshal([]byte(`[[null]]`), &b))
	assert.Error(t, json.Unmarshal([]byte(`[[7,null,null,null,null,null],[],[],[],[],[],[]]`), &b))
}

func TestProperty_WinningLineIsContiguousAndOwned(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBoard()
		for c := 0; c < Columns; c++ {
			h := rapid.IntRange(0, Rows).Draw(t, "height")
			for r := 0; r < h; r++ {
				b[c][r] = Player(rapid.IntRange(0, 1).Draw(t, "owner"))
			}
		}
		col := rapid.IntRange(0, Columns-1).Draw(t, "col")
		row := rapid.IntRange(0, Rows-1).Draw(t, "row")

		line := b.WinningLine(col, row)
		if line == nil {
			return
		}
		if len(line) != ConnectLength {
			t.Fatalf("line length %d", len(line))
		}
		owner := b.At(col, row)
		dc, dr := line[1].Column-line[0].Column, line[1].Row-line[0].Row
		containsAnchor := false
		for i, cell := range line {
			if b.At(cell.Column, cell.Row) != owner {
				t.Fatalf("cell %v not owned by %v", cell, owner)
			}
			if i > 0 && (cell.Column-line[i-1].Column != dc || cell.Row-line[i-1].Row != dr) {
				t.Fatalf("line %v is not straight", line)
			}
			if cell.Column == col && cell.Row == row {
				containsAnchor = true
			}
		}
		if !containsAnchor {
			t.Fatalf("line %v does not pass through (%d,%d)", line, col, row)
		}
	})
}
