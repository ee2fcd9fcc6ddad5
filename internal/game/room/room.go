// Package room provides the registry of live game rooms and the per-room
// state that binds two peers to a Connect-Four game.
package room

import (
	"errors"
	"slices"
	"sync"

	"github.com/cory-johannsen/connect4/internal/game/connectfour"
	"github.com/cory-johannsen/connect4/internal/game/peer"
)

// Capacity is the number of seats in a room.
const Capacity = 2

// Room-level rejections.
var (
	ErrRoomFull           = errors.New("room is full")
	ErrRoomClosed         = errors.New("room closed")
	ErrNotInRoom          = errors.New("not in this room")
	ErrAlreadySeated      = errors.New("already in this room")
	ErrWaitingForOpponent = errors.New("waiting for opponent")
)

// Snapshot is a consistent copy of a room's state.
type Snapshot struct {
	ID        string
	Occupants []peer.ID
	Board     connectfour.Board
	Turn      connectfour.Player
	Outcome   connectfour.Outcome
}

// Room seats up to two peers around one game. Slot i of the occupant list
// plays as connectfour.Player(i).
// All methods are safe for concurrent use.
type Room struct {
	id     string
	mu     sync.Mutex
	peers  []peer.ID
	game   *connectfour.Game
	closed bool
}

func newRoom(id string) *Room {
	return &Room{
		id:    id,
		peers: make([]peer.ID, 0, Capacity),
		game:  connectfour.NewGame(),
	}
}

// ID returns the room code.
func (r *Room) ID() string { return r.id }

// Occupants returns the seated peers in slot order.
func (r *Room) Occupants() []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.peers)
}

// Slot returns the seat held by id.
func (r *Room) Slot(id peer.ID) (connectfour.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotLocked(id)
}

func (r *Room) slotLocked(id peer.ID) (connectfour.Player, bool) {
	i := slices.Index(r.peers, id)
	if i < 0 {
		return connectfour.NoPlayer, false
	}
	return connectfour.Player(i), true
}

// Seat places id in the next free slot.
//
// Postcondition: Returns the slot taken, or ErrRoomClosed, ErrAlreadySeated, or ErrRoomFull.
func (r *Room) Seat(id peer.ID) (connectfour.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return connectfour.NoPlayer, ErrRoomClosed
	}
	if _, ok := r.slotLocked(id); ok {
		return connectfour.NoPlayer, ErrAlreadySeated
	}
	if len(r.peers) >= Capacity {
		return connectfour.NoPlayer, ErrRoomFull
	}
	r.peers = append(r.peers, id)
	return connectfour.Player(len(r.peers) - 1), nil
}

// Move applies a drop by the peer id into col.
//
// Postcondition: On success returns the move result and the room state after
// it. On error the room is unchanged; errors are ErrRoomClosed, ErrNotInRoom,
// ErrWaitingForOpponent, or a connectfour move rejection.
func (r *Room) Move(id peer.ID, col int) (connectfour.MoveResult, Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return connectfour.MoveResult{}, Snapshot{}, ErrRoomClosed
	}
	slot, ok := r.slotLocked(id)
	if !ok {
		return connectfour.MoveResult{}, Snapshot{}, ErrNotInRoom
	}
	if len(r.peers) < Capacity {
		return connectfour.MoveResult{}, Snapshot{}, ErrWaitingForOpponent
	}
	res, err := r.game.ApplyMove(slot, col)
	if err != nil {
		return connectfour.MoveResult{}, Snapshot{}, err
	}
	return res, r.snapshotLocked(), nil
}

// Reset starts a new game for the seated peers. Only an occupant may reset.
//
// Postcondition: Board is empty and PlayerOne is to move; id and seats are unchanged.
func (r *Room) Reset(id peer.ID) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, ErrRoomClosed
	}
	if _, ok := r.slotLocked(id); !ok {
		return Snapshot{}, ErrNotInRoom
	}
	r.game.Reset()
	return r.snapshotLocked(), nil
}

// Snapshot returns a copy of the room state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        r.id,
		Occupants: slices.Clone(r.peers),
		Board:     r.game.Board(),
		Turn:      r.game.Turn(),
		Outcome:   r.game.Outcome(),
	}
}

// isClosed reports whether the room has been destroyed.
func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// close marks the room destroyed and returns the occupants at that moment.
func (r *Room) close() []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return slices.Clone(r.peers)
}
