// Package peer tracks connected peers and the outbound queue each transport
// drains to deliver server events.
package peer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Delivery failures returned by Push.
var (
	ErrClosed      = errors.New("peer closed")
	ErrOutboxFull  = errors.New("peer outbox full")
	ErrPeerUnknown = errors.New("peer not connected")
)

// DefaultOutboxSize is used when a non-positive size is requested.
const DefaultOutboxSize = 64

// ID is a server-minted peer identity. Transport identifiers are never used
// in its place.
type ID string

// NewID mints a random peer identity.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

// Peer is one connected client. Messages pushed to it are queued until the
// owning transport drains Outbox.
type Peer struct {
	id     ID
	remote string
	outbox chan protocol.Message
	mu     sync.Mutex
	closed bool
}

// New creates a Peer with an open outbox.
//
// Postcondition: Returns a Peer whose outbox holds up to size messages.
func New(id ID, remote string, size int) *Peer {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Peer{
		id:     id,
		remote: remote,
		outbox: make(chan protocol.Message, size),
	}
}

// ID returns the peer's identity.
func (p *Peer) ID() ID { return p.id }

// Remote describes the transport endpoint, for logging only.
func (p *Peer) Remote() string { return p.remote }

// Push enqueues msg without blocking.
//
// Postcondition: msg is queued, or ErrClosed / ErrOutboxFull is returned.
func (p *Peer) Push(msg protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("peer %s: %w", p.id, ErrClosed)
	}
	select {
	case p.outbox <- msg:
		return nil
	default:
		return fmt.Errorf("peer %s: %w", p.id, ErrOutboxFull)
	}
}

// Outbox returns the queue the transport reads from. It is closed by Close.
func (p *Peer) Outbox() <-chan protocol.Message {
	return p.outbox
}

// Close closes the outbox. Messages already queued remain readable.
// Close is idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.outbox)
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (p *Peer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
