package room

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cory-johannsen/connect4/internal/game/peer"
)

// ErrCodeSpaceExhausted is returned when no unused code was found within the
// configured number of attempts.
var ErrCodeSpaceExhausted = errors.New("no free room code")

// DefaultMaxCreateAttempts bounds code collision retries.
const DefaultMaxCreateAttempts = 16

// Registry maps room codes to live rooms.
// All methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	codes       *CodeGenerator
	maxAttempts int
}

// NewRegistry creates an empty registry.
//
// Precondition: codes must be non-nil.
func NewRegistry(codes *CodeGenerator, maxAttempts int) *Registry {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCreateAttempts
	}
	return &Registry{
		rooms:       make(map[string]*Room),
		codes:       codes,
		maxAttempts: maxAttempts,
	}
}

// Create registers a room under a code unique among live rooms. The room
// starts with an empty board, PlayerOne to move, and no occupants.
//
// Postcondition: Returns the new Room, or an error wrapping ErrCodeSpaceExhausted.
func (r *Registry) Create() (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		code := r.codes.Next()
		if _, taken := r.rooms[code]; taken {
			continue
		}
		rm := newRoom(code)
		r.rooms[code] = rm
		return rm, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", r.maxAttempts, ErrCodeSpaceExhausted)
}

// Get looks up a room by code. The code is normalized first, so lookups are
// case-insensitive and ignore surrounding whitespace.
func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[NormalizeCode(code)]
	return rm, ok
}

// Remove destroys the room with the given code.
// Removing an unknown code is a no-op.
//
// Postcondition: Returns the occupants at destruction time and whether a room was removed.
func (r *Registry) Remove(code string) ([]peer.ID, bool) {
	code = NormalizeCode(code)

	r.mu.Lock()
	rm, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	return rm.close(), true
}

// RoomsWithPeer scans every live room and returns those seating id.
func (r *Registry) RoomsWithPeer(id peer.ID) []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*Room
	for _, rm := range r.rooms {
		if _, ok := rm.Slot(id); ok {
			found = append(found, rm)
		}
	}
	return found
}

// Count returns the number of live rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
