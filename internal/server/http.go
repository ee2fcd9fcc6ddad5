package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// DefaultShutdownTimeout bounds HTTPService.Stop when no timeout is set.
const DefaultShutdownTimeout = 10 * time.Second

// HTTPService adapts an *http.Server into the Service interface.
type HTTPService struct {
	Server *http.Server
	// Listener, when set, is served instead of listening on Server.Addr.
	Listener net.Listener
	// ShutdownTimeout bounds graceful shutdown before connections are closed.
	ShutdownTimeout time.Duration
}

// Start serves HTTP until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop, or the serve error otherwise.
func (h *HTTPService) Start() error {
	var err error
	if h.Listener != nil {
		err = h.Server.Serve(h.Listener)
	} else {
		err = h.Server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully, forcing connections closed once the
// timeout elapses.
func (h *HTTPService) Stop() {
	timeout := h.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.Server.Shutdown(ctx); err != nil {
		_ = h.Server.Close()
	}
}
