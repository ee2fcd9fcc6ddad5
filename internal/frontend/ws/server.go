// Package ws serves the JSON event protocol over WebSocket for browser clients.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/config"
	"github.com/cory-johannsen/connect4/internal/game/peer"
	"github.com/cory-johannsen/connect4/internal/gameserver"
	"github.com/cory-johannsen/connect4/internal/observability"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Arbiter is the session arbiter as seen by a transport.
type Arbiter interface {
	Connect(remote string) *peer.Peer
	Handle(id peer.ID, req protocol.Request)
	RejectMalformed(id peer.ID, err error)
	Disconnect(id peer.ID)
	Stats() gameserver.Stats
}

// Server upgrades HTTP requests to WebSocket connections and pumps frames
// between each connection and its peer.
type Server struct {
	cfg      config.WebSocketConfig
	arbiter  Arbiter
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a Server.
//
// Precondition: arbiter and logger must be non-nil.
func NewServer(cfg config.WebSocketConfig, arbiter Arbiter, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		arbiter: arbiter,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	if !cfg.CheckOrigin {
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return s
}

// Handler returns the HTTP routes: the WebSocket endpoint at the configured
// path and GET /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.ServeWS)
	mux.HandleFunc("GET /healthz", s.Healthz)
	return mux
}

// Healthz reports liveness plus room and peer counts.
func (s *Server) Healthz(w http.ResponseWriter, _ *http.Request) {
	stats := s.arbiter.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		gameserver.Stats
	}{Status: "ok", Stats: stats})
}

// ServeWS upgrades the request and starts the connection's pumps.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	if !s.track(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.WriteWait))
		_ = conn.Close()
		return
	}

	p := s.arbiter.Connect(r.RemoteAddr)
	log := observability.ConnLogger(s.logger, "websocket", p.ID(), r.RemoteAddr)

	go s.writePump(conn, p, log)
	go s.readPump(conn, p, log)
}

// readPump decodes inbound frames and hands them to the arbiter. It owns the
// peer's lifetime: when reading stops, the peer is disconnected.
func (s *Server) readPump(conn *websocket.Conn, p *peer.Peer, log *zap.Logger) {
	defer s.wg.Done()
	defer func() {
		s.arbiter.Disconnect(p.ID())
		s.untrack(conn)
		_ = conn.Close()
	}()

	conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Info("websocket read failed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			s.arbiter.RejectMalformed(p.ID(), protocol.ErrMalformed)
			continue
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			s.arbiter.RejectMalformed(p.ID(), err)
			continue
		}
		s.arbiter.Handle(p.ID(), req)
	}
}

// writePump drains the peer's outbox onto the socket and keeps the
// connection alive with pings.
func (s *Server) writePump(conn *websocket.Conn, p *peer.Peer, log *zap.Logger) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := protocol.Encode(msg)
			if err != nil {
				log.Error("encoding outbound message", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// track registers conn and reserves its two pumps. It reports false once
// Close has been called.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(2)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// Close closes every open WebSocket connection and waits for their pumps to
// exit. Hijacked connections are not covered by http.Server.Shutdown, so
// register Close with RegisterOnShutdown.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.WriteWait))
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Conns returns the number of open WebSocket connections.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
