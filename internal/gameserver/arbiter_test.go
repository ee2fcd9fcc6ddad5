package gameserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/connect4/internal/game/connectfour"
	"github.com/cory-johannsen/connect4/internal/game/peer"
	"github.com/cory-johannsen/connect4/internal/game/room"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

func newTestArbiter(t testing.TB) *Arbiter {
	t.Helper()
	codes, err := room.NewCodeGenerator(room.NewCryptoSource(), 6)
	require.NoError(t, err)
	return NewArbiter(
		room.NewRegistry(codes, room.DefaultMaxCreateAttempts),
		peer.NewManager(peer.DefaultOutboxSize),
		zaptest.NewLogger(t),
	)
}

// drain returns every message currently queued for p.
func drain(p *peer.Peer) []protocol.Message {
	var out []protocol.Message
	for {
		select {
		case msg, ok := <-p.Outbox():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func next(t testing.TB, p *peer.Peer) protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-p.Outbox():
		require.True(t, ok, "outbox closed")
		return msg
	default:
		t.Fatalf("no message queued for %s", p.ID())
		return protocol.Message{}
	}
}

func errorText(t testing.TB, msg protocol.Message) string {
	t.Helper()
	require.Equal(t, protocol.EventError, msg.Type)
	payload, ok := msg.Payload.(protocol.Error)
	require.True(t, ok)
	return payload.Message
}

// openRoom creates a room for a and seats b, returning the room code with
// both outboxes drained.
func openRoom(t testing.TB, a *Arbiter, host, guest *peer.Peer) string {
	t.Helper()
	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	created := next(t, host)
	require.Equal(t, protocol.EventRoomCreated, created.Type)
	code := created.Payload.(protocol.RoomSeat).RoomID

	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventJoinRoom, RoomID: code})
	drain(host)
	drain(guest)
	return code
}

func move(a *Arbiter, p *peer.Peer, code string, col int) {
	a.Handle(p.ID(), protocol.Request{Type: protocol.EventMakeMove, RoomID: code, Column: col})
}

func TestCreateRoom_RepliesWithCodeAndSlotZero(t *testing.T) {
	a := newTestArbiter(t)
	host := a.Connect("127.0.0.1:1")

	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})

	msg := next(t, host)
	require.Equal(t, protocol.EventRoomCreated, msg.Type)
	seat := msg.Payload.(protocol.RoomSeat)
	assert.Len(t, seat.RoomID, 6)
	assert.Equal(t, 0, seat.Slot)
	assert.Equal(t, Stats{Rooms: 1, Peers: 1}, a.Stats())
}

func TestCreateRoom_RejectsPeerAlreadySeated(t *testing.T) {
	a := newTestArbiter(t)
	host := a.Connect("h")
	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	drain(host)

	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})

	assert.Equal(t, ErrAlreadyInRoom.Error(), errorText(t, next(t, host)))
	assert.Equal(t, 1, a.Stats().Rooms)
}

func TestJoinRoom_StartsGameForBoth(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	code := next(t, host).Payload.(protocol.RoomSeat).RoomID

	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventJoinRoom, RoomID: code})

	joined := next(t, guest)
	require.Equal(t, protocol.EventJoinedRoom, joined.Type)
	assert.Equal(t, protocol.RoomSeat{RoomID: code, Slot: 1}, joined.Payload)

	for _, p := range []*peer.Peer{host, guest} {
		start := next(t, p)
		require.Equal(t, protocol.EventGameStart, start.Type)
		state := start.Payload.(protocol.GameState)
		assert.Equal(t, connectfour.PlayerOne, state.CurrentPlayer)
		assert.Equal(t, connectfour.NewBoard(), state.Board)
		assert.Nil(t, state.LastMove)
	}
}

func TestJoinRoom_CodeIsCaseInsensitive(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	code := next(t, host).Payload.(protocol.RoomSeat).RoomID

	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventJoinRoom, RoomID: " " + code + " "})

	assert.Equal(t, protocol.EventJoinedRoom, next(t, guest).Type)
}

func TestJoinRoom_UnknownCode(t *testing.T) {
	a := newTestArbiter(t)
	guest := a.Connect("g")

	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventJoinRoom, RoomID: "NOPE00"})

	assert.Equal(t, "room not found", errorText(t, next(t, guest)))
	assert.Empty(t, drain(guest))
}

func TestJoinRoom_FullRoom(t *testing.T) {
	a := newTestArbiter(t)
	host, guest, third := a.Connect("h"), a.Connect("g"), a.Connect("x")
	code := openRoom(t, a, host, guest)

	a.Handle(third.ID(), protocol.Request{Type: protocol.EventJoinRoom, RoomID: code})

	assert.Equal(t, "room is full", errorText(t, next(t, third)))
	assert.Empty(t, drain(host))
	assert.Empty(t, drain(guest))
}

func TestJoinRoom_OwnRoomRejected(t *testing.T) {
	a := newTestArbiter(t)
	host := a.Connect("h")
	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	code := next(t, host).Payload.(protocol.RoomSeat).RoomID

	a.Handle(host.ID(), protocol.Request{Type: protocol.EventJoinRoom, RoomID: code})

	assert.Equal(t, room.ErrAlreadySeated.Error(), errorText(t, next(t, host)))
}

func TestMakeMove_BroadcastsUpdate(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)

	move(a, host, code, 3)

	for _, p := range []*peer.Peer{host, guest} {
		msg := next(t, p)
		require.Equal(t, protocol.EventGameUpdate, msg.Type)
		state := msg.Payload.(protocol.GameState)
		assert.Equal(t, connectfour.PlayerTwo, state.CurrentPlayer)
		assert.Equal(t, connectfour.PlayerOne, state.Board.At(3, 0))
		require.NotNil(t, state.LastMove)
		assert.Equal(t, connectfour.Move{Column: 3, Row: 0, Player: connectfour.PlayerOne}, *state.LastMove)
	}
}

func TestMakeMove_RejectionsArePrivate(t *testing.T) {
	cases := []struct {
		name  string
		setup []int
		mover int
		col   int
		want  string
	}{
		{name: "out of turn", mover: 1, col: 0, want: "not your turn"},
		{name: "invalid column", mover: 0, col: 7, want: "invalid column"},
		{name: "negative column", mover: 0, col: -1, want: "invalid column"},
		{name: "full column", setup: []int{0, 0, 0, 0, 0, 0}, mover: 0, col: 0, want: "column is full"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestArbiter(t)
			players := []*peer.Peer{a.Connect("h"), a.Connect("g")}
			code := openRoom(t, a, players[0], players[1])
			for i, col := range tc.setup {
				move(a, players[i%2], code, col)
			}
			drain(players[0])
			drain(players[1])

			move(a, players[tc.mover], code, tc.col)

			assert.Equal(t, tc.want, errorText(t, next(t, players[tc.mover])))
			assert.Empty(t, drain(players[1-tc.mover]))
		})
	}
}

func TestMakeMove_BeforeOpponentJoins(t *testing.T) {
	a := newTestArbiter(t)
	host := a.Connect("h")
	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	code := next(t, host).Payload.(protocol.RoomSeat).RoomID

	move(a, host, code, 0)

	assert.Equal(t, "waiting for opponent", errorText(t, next(t, host)))
}

func TestMakeMove_Outsider(t *testing.T) {
	a := newTestArbiter(t)
	host, guest, outsider := a.Connect("h"), a.Connect("g"), a.Connect("o")
	code := openRoom(t, a, host, guest)

	move(a, outsider, code, 0)

	assert.Equal(t, "not in this room", errorText(t, next(t, outsider)))
}

func TestMakeMove_WinningMoveEndsGame(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)
	players := []*peer.Peer{host, guest}
	for i, col := range []int{0, 1, 0, 1, 0, 1} {
		move(a, players[i%2], code, col)
	}
	require.Equal(t, connectfour.PlayerOne, a.turnOf(t, code))
	drain(host)
	drain(guest)

	move(a, host, code, 0)

	for _, p := range []*peer.Peer{host, guest} {
		msg := next(t, p)
		require.Equal(t, protocol.EventGameOver, msg.Type)
		over := msg.Payload.(protocol.GameOver)
		assert.Equal(t, connectfour.PlayerOne, over.Winner)
		require.NotNil(t, over.LastMove)
		assert.Equal(t, connectfour.Move{Column: 0, Row: 3, Player: connectfour.PlayerOne}, *over.LastMove)
		assert.Len(t, over.WinningCells, connectfour.ConnectLength)
	}

	move(a, guest, code, 2)
	assert.Equal(t, "game is over", errorText(t, next(t, guest)))
}

func TestResetRoom_BroadcastsFreshGame(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)
	move(a, host, code, 4)
	drain(host)
	drain(guest)

	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventResetRoom, RoomID: code})

	for _, p := range []*peer.Peer{host, guest} {
		msg := next(t, p)
		require.Equal(t, protocol.EventGameReset, msg.Type)
		state := msg.Payload.(protocol.GameState)
		assert.Equal(t, connectfour.NewBoard(), state.Board)
		assert.Equal(t, connectfour.PlayerOne, state.CurrentPlayer)
	}
}

func TestDisconnect_NotifiesOpponentAndDestroysRoom(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)

	a.Disconnect(host.ID())

	msg := next(t, guest)
	require.Equal(t, protocol.EventPlayerDisconnected, msg.Type)
	assert.Equal(t, protocol.PlayerDisconnected{RoomID: code}, msg.Payload)
	assert.True(t, host.IsClosed())
	assert.Equal(t, Stats{Rooms: 0, Peers: 1}, a.Stats())

	// Moves against the destroyed room are ignored.
	move(a, guest, code, 0)
	assert.Empty(t, drain(guest))

	// The code no longer resolves.
	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventJoinRoom, RoomID: code})
	assert.Equal(t, "room not found", errorText(t, next(t, guest)))
}

// drawSequence fills the board with alternating players and no run of four.
var drawSequence = []int{
	1, 0, 0, 0, 0, 0, 0, 1, 5, 1, 1, 2, 1, 1, 2, 3, 2, 2, 3, 2, 2,
	3, 3, 4, 3, 3, 4, 5, 4, 4, 5, 5, 5, 6, 6, 4, 6, 5, 6, 6, 4, 6,
}

// playDraw runs drawSequence through a, alternating host and guest, and
// leaves the final gameOver queued on both outboxes.
func playDraw(t *testing.T, a *Arbiter, host, guest *peer.Peer, code string) {
	t.Helper()
	players := []*peer.Peer{host, guest}
	last := len(drawSequence) - 1
	for i, col := range drawSequence[:last] {
		move(a, players[i%2], code, col)
	}
	drain(host)
	drain(guest)
	move(a, players[last%2], code, drawSequence[last])
}

func TestMakeMove_DrawEndsGame(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)

	playDraw(t, a, host, guest, code)

	for _, p := range []*peer.Peer{host, guest} {
		msg := next(t, p)
		require.Equal(t, protocol.EventGameOver, msg.Type)
		over := msg.Payload.(protocol.GameOver)
		assert.Equal(t, connectfour.NoPlayer, over.Winner)
		assert.Empty(t, over.WinningCells)
		assert.True(t, over.Board.Full())
		require.NotNil(t, over.LastMove)
		assert.Equal(t, drawSequence[len(drawSequence)-1], over.LastMove.Column)
	}

	move(a, host, code, 0)
	assert.Equal(t, "game is over", errorText(t, next(t, host)))
	assert.Empty(t, drain(guest))
}

func TestResetRoom_AfterGameOver(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)
	playDraw(t, a, host, guest, code)
	drain(host)
	drain(guest)

	a.Handle(host.ID(), protocol.Request{Type: protocol.EventResetRoom, RoomID: code})

	for _, p := range []*peer.Peer{host, guest} {
		msg := next(t, p)
		require.Equal(t, protocol.EventGameReset, msg.Type)
		state := msg.Payload.(protocol.GameState)
		assert.Equal(t, connectfour.NewBoard(), state.Board)
		assert.Equal(t, connectfour.PlayerOne, state.CurrentPlayer)
	}

	// Same room, same seats, and play resumes.
	move(a, host, code, 3)
	for _, p := range []*peer.Peer{host, guest} {
		msg := next(t, p)
		require.Equal(t, protocol.EventGameUpdate, msg.Type)
		assert.Equal(t, connectfour.PlayerTwo, msg.Payload.(protocol.GameState).CurrentPlayer)
	}
}

func TestResetRoom_Outsider(t *testing.T) {
	a := newTestArbiter(t)
	host, guest, outsider := a.Connect("h"), a.Connect("g"), a.Connect("o")
	code := openRoom(t, a, host, guest)

	a.Handle(outsider.ID(), protocol.Request{Type: protocol.EventResetRoom, RoomID: code})

	assert.Equal(t, "not in this room", errorText(t, next(t, outsider)))
	assert.Empty(t, drain(host))
	assert.Empty(t, drain(guest))
}

// newObservedArbiter returns an arbiter whose log entries are recorded.
func newObservedArbiter(t testing.TB) (*Arbiter, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	codes, err := room.NewCodeGenerator(room.NewCryptoSource(), 6)
	require.NoError(t, err)
	return NewArbiter(
		room.NewRegistry(codes, room.DefaultMaxCreateAttempts),
		peer.NewManager(peer.DefaultOutboxSize),
		zap.New(core),
	), logs
}

func TestResetRoom_VanishedRoomIgnored(t *testing.T) {
	a, logs := newObservedArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)
	a.Disconnect(host.ID())
	drain(guest)

	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventResetRoom, RoomID: code})

	assert.Empty(t, drain(guest))
	assert.Equal(t, 1, logs.FilterMessage("request for vanished room ignored").Len())
}

func TestDisconnect_LogsRemoteAddress(t *testing.T) {
	a, logs := newObservedArbiter(t)
	p := a.Connect("203.0.113.7:5555")

	a.Disconnect(p.ID())

	entries := logs.FilterMessage("peer disconnected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.7:5555", entries[0].ContextMap()["remote_addr"])
}

func TestDisconnect_LoneHostRemovesRoom(t *testing.T) {
	a := newTestArbiter(t)
	host := a.Connect("h")
	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	drain(host)

	a.Disconnect(host.ID())
	a.Disconnect(host.ID())

	assert.Equal(t, Stats{}, a.Stats())
}

func TestLeaveRoom_FreesPeerForNewRoom(t *testing.T) {
	a := newTestArbiter(t)
	host, guest := a.Connect("h"), a.Connect("g")
	code := openRoom(t, a, host, guest)

	a.Handle(host.ID(), protocol.Request{Type: protocol.EventLeaveRoom})

	assert.Equal(t, protocol.EventPlayerDisconnected, next(t, guest).Type)
	assert.Empty(t, drain(host))
	_, ok := a.rooms.Get(code)
	assert.False(t, ok)

	a.Handle(host.ID(), protocol.Request{Type: protocol.EventCreateRoom})
	assert.Equal(t, protocol.EventRoomCreated, next(t, host).Type)

	a.Handle(guest.ID(), protocol.Request{Type: protocol.EventLeaveRoom})
	assert.Equal(t, ErrNotSeated.Error(), errorText(t, next(t, guest)))
}

func TestHandle_UnknownEvent(t *testing.T) {
	a := newTestArbiter(t)
	p := a.Connect("p")

	a.Handle(p.ID(), protocol.Request{Type: "launchMissiles"})

	assert.Contains(t, errorText(t, next(t, p)), "unknown event")
}

func TestRejectMalformed(t *testing.T) {
	a := newTestArbiter(t)
	p := a.Connect("p")

	_, err := protocol.DecodeRequest([]byte("{not json"))
	require.Error(t, err)
	a.RejectMalformed(p.ID(), err)

	assert.Equal(t, protocol.ErrMalformed.Error(), errorText(t, next(t, p)))
}

func TestHandle_DisconnectedPeerIgnored(t *testing.T) {
	a := newTestArbiter(t)
	p := a.Connect("p")
	a.Disconnect(p.ID())

	a.Handle(p.ID(), protocol.Request{Type: protocol.EventCreateRoom})

	assert.Zero(t, a.Stats().Rooms)
}

// turnOf reads the player to move in a live room.
func (a *Arbiter) turnOf(t testing.TB, code string) connectfour.Player {
	t.Helper()
	rm, ok := a.rooms.Get(code)
	require.True(t, ok)
	return rm.Snapshot().Turn
}

func TestProperty_BroadcastsReachBothOccupantsIdentically(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := newTestArbiter(t)
		players := []*peer.Peer{a.Connect("h"), a.Connect("g")}
		code := openRoom(t, a, players[0], players[1])

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			mover := rapid.IntRange(0, 1).Draw(rt, "mover")
			col := rapid.IntRange(-1, connectfour.Columns).Draw(rt, "col")
			move(a, players[mover], code, col)

			mine := drain(players[mover])
			theirs := drain(players[1-mover])
			if len(mine) == 1 && mine[0].Type == protocol.EventError {
				if len(theirs) != 0 {
					rt.Fatalf("rejection leaked to opponent: %+v", theirs)
				}
				continue
			}
			if len(mine) != 1 || len(theirs) != 1 {
				rt.Fatalf("expected one broadcast each, got %d and %d", len(mine), len(theirs))
			}
			if mine[0].Type != theirs[0].Type {
				rt.Fatalf("broadcast types differ: %s vs %s", mine[0].Type, theirs[0].Type)
			}
		}
	})
}
