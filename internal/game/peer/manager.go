package peer

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Manager tracks all connected peers.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	peers      map[ID]*Peer
	outboxSize int
}

// NewManager creates an empty Manager whose peers get outboxes of outboxSize.
func NewManager(outboxSize int) *Manager {
	return &Manager{
		peers:      make(map[ID]*Peer),
		outboxSize: outboxSize,
	}
}

// Connect registers a new peer with a freshly minted ID.
//
// Postcondition: Returns the registered Peer.
func (m *Manager) Connect(remote string) *Peer {
	p := New(NewID(), remote, m.outboxSize)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[p.id] = p
	return p
}

// Disconnect removes the peer and closes its outbox.
//
// Postcondition: The peer is no longer tracked. Returns ErrPeerUnknown if it was not.
func (m *Manager) Disconnect(id ID) error {
	m.mu.Lock()
	p, ok := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("peer %s: %w", id, ErrPeerUnknown)
	}
	return p.Close()
}

// Get returns the peer for id.
func (m *Manager) Get(id ID) (*Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[id]
	return p, ok
}

// Send pushes msg to the peer identified by id.
//
// Postcondition: Returns nil if queued; ErrPeerUnknown, ErrClosed, or ErrOutboxFull otherwise.
func (m *Manager) Send(id ID, msg protocol.Message) error {
	p, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("peer %s: %w", id, ErrPeerUnknown)
	}
	return p.Push(msg)
}

// Count returns the number of connected peers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}
