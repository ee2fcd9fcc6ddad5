package telnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/config"
)

// SessionHandler runs the command loop for one Telnet client.
// HandleSession returns when the client quits, the connection fails, or ctx
// is cancelled.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Acceptor accepts Telnet connections and runs a SessionHandler for each.
type Acceptor struct {
	cfg     config.TelnetConfig
	handler SessionHandler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
}

// NewAcceptor creates an Acceptor.
//
// Precondition: handler and logger must be non-nil.
func NewAcceptor(cfg config.TelnetConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conns:   make(map[*Conn]context.CancelFunc),
	}
}

// ListenAndServe listens on the configured address and serves until Stop.
//
// Postcondition: Returns nil after Stop, or the listen/accept error.
func (a *Acceptor) ListenAndServe() error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ln)
}

// Serve accepts connections on ln until Stop is called. Serve takes
// ownership of ln.
//
// Postcondition: ln is closed when Serve returns.
func (a *Acceptor) Serve(ln net.Listener) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	a.listener = ln
	a.mu.Unlock()

	a.logger.Info("telnet acceptor listening", zap.String("addr", ln.Addr().String()))

	var backoff time.Duration
	for {
		raw, err := ln.Accept()
		if err != nil {
			if a.isStopped() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				a.logger.Warn("accepting connection", zap.Error(err), zap.Duration("retry_in", backoff))
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		backoff = 0

		if !a.track(raw) {
			_ = raw.Close()
			return nil
		}
	}
}

// track registers raw and starts its session goroutine. It reports false
// once the acceptor is stopping.
func (a *Acceptor) track(raw net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return false
	}

	conn := NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	ctx, cancel := context.WithCancel(context.Background())
	a.conns[conn] = cancel
	a.wg.Add(1)
	go a.serveConn(ctx, conn)
	return true
}

func (a *Acceptor) serveConn(ctx context.Context, conn *Conn) {
	defer a.wg.Done()
	start := time.Now()
	addr := conn.RemoteAddr().String()

	defer func() {
		a.mu.Lock()
		if cancel, ok := a.conns[conn]; ok {
			cancel()
			delete(a.conns, conn)
		}
		a.mu.Unlock()
		_ = conn.Close()
	}()

	if err := conn.Negotiate(); err != nil {
		a.logger.Warn("telnet negotiation failed", zap.String("remote_addr", addr), zap.Error(err))
		return
	}

	err := a.handler.HandleSession(ctx, conn)
	a.logger.Debug("telnet session ended",
		zap.String("remote_addr", addr),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
}

// Stop closes the listener and every open session, then waits for session
// goroutines to exit. Stop is idempotent.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	if a.listener != nil {
		_ = a.listener.Close()
	}
	for conn, cancel := range a.conns {
		cancel()
		_ = conn.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("telnet acceptor stopped")
}

// Addr returns the listening address, or "" before Serve has started.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Sessions returns the number of open sessions.
func (a *Acceptor) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

func (a *Acceptor) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}
