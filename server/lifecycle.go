package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
)

// Start launches the view broadcasters and live views. It does not listen;
// use ListenAndServe or Serve for that. Calling Start twice is a no-op.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		s.startViewBroadcasters()
		s.svc.Start()
	})
}

// ListenAndServe starts background services and serves HTTP on the
// configured address until Stop is called
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.opts.Addr)
	}
	return s.Serve(ln)
}

// Serve starts background services and serves HTTP on ln until Stop
func (s *Server) Serve(ln net.Listener) error {
	s.Start()
	s.logger.Infow("Dashboard server listening",
		logger.FieldAddress, ln.Addr().String(),
		"url", "http://"+ln.Addr().String())

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "dashboard server failed")
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, closes client connections,
// stops the live views and waits for goroutines
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Infow("Initiating server shutdown")

	shutdownErr := s.httpServer.Shutdown(ctx)

	// hijacked WebSocket connections are not closed by Shutdown
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()
	for _, client := range clients {
		client.conn.Close()
	}

	s.cancel()
	s.svc.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout)
	}

	s.logger.Infow("Server shutdown complete",
		"broadcast_drops", s.broadcastDrops.Load())

	if shutdownErr != nil && !errors.Is(shutdownErr, http.ErrServerClosed) {
		return errors.Wrap(shutdownErr, "http shutdown")
	}
	return nil
}
