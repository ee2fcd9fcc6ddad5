// Package gameserver hosts the session arbiter: it binds peer requests to
// rooms, enforces protocol rules, and decides which state is delivered to
// which peer.
package gameserver

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/game/peer"
	"github.com/cory-johannsen/connect4/internal/game/room"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Arbiter-level rejections reported privately to the requesting peer.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotSeated     = errors.New("not in a room")
	ErrCreateFailed  = errors.New("could not create room")
)

// errRoomGone marks requests that reference a room destroyed by a concurrent
// disconnect. They are dropped without a reply.
var errRoomGone = errors.New("room gone")

// Stats is a point-in-time count of live rooms and connected peers.
type Stats struct {
	Rooms int `json:"rooms"`
	Peers int `json:"peers"`
}

// Arbiter dispatches peer requests against the room registry. Requests are
// handled one at a time, each to completion, so no two requests interleave
// their mutations.
type Arbiter struct {
	mu     sync.Mutex
	rooms  *room.Registry
	peers  *peer.Manager
	logger *zap.Logger
}

// NewArbiter creates an Arbiter that owns the given registry and peer manager.
//
// Precondition: rooms, peers, and logger must be non-nil.
func NewArbiter(rooms *room.Registry, peers *peer.Manager, logger *zap.Logger) *Arbiter {
	return &Arbiter{
		rooms:  rooms,
		peers:  peers,
		logger: logger,
	}
}

// Connect registers a new peer for a freshly accepted transport connection.
//
// Postcondition: Returns a Peer in the Unbound state whose outbox the transport must drain.
func (a *Arbiter) Connect(remote string) *peer.Peer {
	p := a.peers.Connect(remote)
	a.logger.Info("peer connected",
		zap.Stringer("peer", p.ID()),
		zap.String("remote_addr", remote),
	)
	return p
}

// Disconnect destroys every room the peer is seated in, notifying the other
// occupant, and then forgets the peer.
//
// Postcondition: The peer's outbox is closed and no live room references it.
func (a *Arbiter) Disconnect(id peer.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.vacate(id, "disconnect")
	p, ok := a.peers.Get(id)
	if err := a.peers.Disconnect(id); err != nil || !ok {
		a.logger.Debug("disconnecting unknown peer", zap.Stringer("peer", id), zap.Error(err))
		return
	}
	a.logger.Info("peer disconnected",
		zap.Stringer("peer", id),
		zap.String("remote_addr", p.Remote()),
	)
}

// Handle processes one request from a connected peer. Protocol violations
// are answered privately with an error message; requests for rooms that no
// longer exist are ignored.
func (a *Arbiter) Handle(id peer.ID, req protocol.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.peers.Get(id); !ok {
		a.logger.Debug("request from unknown peer dropped",
			zap.Stringer("peer", id),
			zap.String("type", req.Type),
		)
		return
	}

	err := a.dispatch(id, req)
	if err == nil {
		return
	}
	if errors.Is(err, errRoomGone) {
		a.logger.Debug("request for vanished room ignored",
			zap.Stringer("peer", id),
			zap.String("type", req.Type),
			zap.String("room", req.RoomID),
		)
		return
	}
	a.logger.Debug("request rejected",
		zap.Stringer("peer", id),
		zap.String("type", req.Type),
		zap.String("room", req.RoomID),
		zap.Error(err),
	)
	a.reply(id, protocol.Failure(err.Error()))
}

// RejectMalformed answers a frame the transport could not decode.
func (a *Arbiter) RejectMalformed(id peer.ID, err error) {
	reason := protocol.ErrMalformed.Error()
	if errors.Is(err, protocol.ErrUnknownEvent) {
		reason = protocol.ErrUnknownEvent.Error()
	}
	a.logger.Debug("undecodable frame", zap.Stringer("peer", id), zap.Error(err))
	a.reply(id, protocol.Failure(reason))
}

// Stats reports the number of live rooms and connected peers.
func (a *Arbiter) Stats() Stats {
	return Stats{Rooms: a.rooms.Count(), Peers: a.peers.Count()}
}

// dispatch routes a request to the appropriate handler.
func (a *Arbiter) dispatch(id peer.ID, req protocol.Request) error {
	switch req.Type {
	case protocol.EventCreateRoom:
		return a.handleCreate(id)
	case protocol.EventJoinRoom:
		return a.handleJoin(id, req.RoomID)
	case protocol.EventMakeMove:
		return a.handleMove(id, req.RoomID, req.Column)
	case protocol.EventResetRoom:
		return a.handleReset(id, req.RoomID)
	case protocol.EventLeaveRoom:
		return a.handleLeave(id)
	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnknownEvent, req.Type)
	}
}

func (a *Arbiter) handleCreate(id peer.ID) error {
	if len(a.rooms.RoomsWithPeer(id)) > 0 {
		return ErrAlreadyInRoom
	}

	rm, err := a.rooms.Create()
	if err != nil {
		a.logger.Error("creating room", zap.Stringer("peer", id), zap.Error(err))
		return ErrCreateFailed
	}
	slot, err := rm.Seat(id)
	if err != nil {
		a.rooms.Remove(rm.ID())
		return err
	}

	a.reply(id, protocol.RoomCreated(rm.ID(), int(slot)))
	a.logger.Info("room created",
		zap.String("room", rm.ID()),
		zap.Stringer("peer", id),
	)
	return nil
}

func (a *Arbiter) handleJoin(id peer.ID, code string) error {
	rm, ok := a.rooms.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	for _, seated := range a.rooms.RoomsWithPeer(id) {
		if seated != rm {
			return ErrAlreadyInRoom
		}
	}

	slot, err := rm.Seat(id)
	if errors.Is(err, room.ErrRoomClosed) {
		return ErrRoomNotFound
	}
	if err != nil {
		return err
	}

	a.reply(id, protocol.JoinedRoom(rm.ID(), int(slot)))
	snap := rm.Snapshot()
	a.broadcastToRoom(snap, protocol.GameStart(snap.Board, snap.Turn))
	a.logger.Info("player joined room",
		zap.String("room", rm.ID()),
		zap.Stringer("peer", id),
		zap.Int("slot", int(slot)),
	)
	return nil
}

func (a *Arbiter) handleMove(id peer.ID, code string, col int) error {
	rm, ok := a.rooms.Get(code)
	if !ok {
		return errRoomGone
	}

	res, snap, err := rm.Move(id, col)
	if errors.Is(err, room.ErrRoomClosed) {
		return errRoomGone
	}
	if err != nil {
		return err
	}

	if !res.Outcome.Terminal {
		a.broadcastToRoom(snap, protocol.GameUpdate(snap.Board, snap.Turn, res.Move))
		return nil
	}

	a.broadcastToRoom(snap, protocol.GameEnded(res.Outcome, snap.Board, res.Move))
	if res.Outcome.IsDraw() {
		a.logger.Info("game ended in a draw", zap.String("room", rm.ID()))
	} else {
		a.logger.Info("game won",
			zap.String("room", rm.ID()),
			zap.Stringer("winner", res.Outcome.Winner),
		)
	}
	return nil
}

func (a *Arbiter) handleReset(id peer.ID, code string) error {
	rm, ok := a.rooms.Get(code)
	if !ok {
		return errRoomGone
	}

	snap, err := rm.Reset(id)
	if errors.Is(err, room.ErrRoomClosed) {
		return errRoomGone
	}
	if err != nil {
		return err
	}

	a.broadcastToRoom(snap, protocol.GameReset(snap.Board, snap.Turn))
	a.logger.Info("game reset", zap.String("room", rm.ID()), zap.Stringer("peer", id))
	return nil
}

func (a *Arbiter) handleLeave(id peer.ID) error {
	if a.vacate(id, "leave") == 0 {
		return ErrNotSeated
	}
	return nil
}

// vacate destroys every live room seating id and notifies the remaining
// occupants. It returns the number of rooms destroyed.
func (a *Arbiter) vacate(id peer.ID, reason string) int {
	closed := 0
	for _, rm := range a.rooms.RoomsWithPeer(id) {
		occupants, removed := a.rooms.Remove(rm.ID())
		if !removed {
			continue
		}
		closed++
		remaining := slices.DeleteFunc(occupants, func(o peer.ID) bool { return o == id })
		a.sendAll(remaining, protocol.PeerLeft(rm.ID()))
		a.logger.Info("room closed",
			zap.String("room", rm.ID()),
			zap.Stringer("peer", id),
			zap.String("reason", reason),
			zap.Int("notified", len(remaining)),
		)
	}
	return closed
}

// broadcastToRoom delivers msg to every occupant of the room snapshot.
func (a *Arbiter) broadcastToRoom(snap room.Snapshot, msg protocol.Message) {
	a.sendAll(snap.Occupants, msg)
}

func (a *Arbiter) sendAll(ids []peer.ID, msg protocol.Message) {
	for _, id := range ids {
		a.reply(id, msg)
	}
}

// reply delivers msg to a single peer. Delivery is best effort.
func (a *Arbiter) reply(id peer.ID, msg protocol.Message) {
	if err := a.peers.Send(id, msg); err != nil {
		a.logger.Warn("dropping message for peer",
			zap.Stringer("peer", id),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}
