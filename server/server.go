// Package server exposes the dashboard over HTTP: a JSON API for the job and
// workflow views, operator actions, and a WebSocket that pushes every view
// update to connected browsers.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nutsq/nutsdash/logger"
	"github.com/nutsq/nutsdash/nuts/dashboard"
)

const (
	// MaxClients caps concurrent WebSocket connections
	MaxClients = 64

	// ShutdownTimeout bounds how long Stop waits for goroutines
	ShutdownTimeout = 5 * time.Second
)

// Options configures a Server
type Options struct {
	Addr           string   // listen address, host:port
	AllowedOrigins []string // CORS and WebSocket origin prefixes
}

// Server serves the dashboard API and WebSocket hub
type Server struct {
	svc            *dashboard.Service
	opts           Options
	router         chi.Router
	httpServer     *http.Server
	logger         *zap.SugaredLogger
	allowedOrigins atomic.Pointer[[]string]

	mu      sync.RWMutex
	clients map[*Client]bool

	// lifecycle
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	startOnce      sync.Once
	broadcastDrops atomic.Int64
}

// New creates a Server over svc. Nothing runs until Start or ListenAndServe.
func New(svc *dashboard.Service, opts Options, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		svc:     svc,
		opts:    opts,
		logger:  log,
		clients: make(map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.SetAllowedOrigins(opts.AllowedOrigins)
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.opts.Addr
}

// SetAllowedOrigins replaces the origin allow-list, e.g. on config reload
func (s *Server) SetAllowedOrigins(origins []string) {
	cp := append([]string(nil), origins...)
	s.allowedOrigins.Store(&cp)
}

// ClientCount returns the number of connected WebSocket clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// registerClient adds c unless the client limit is reached
func (s *Server) registerClient(c *Client) bool {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", c.id,
			"max_clients", MaxClients)
		return false
	}
	s.clients[c] = true
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", c.id,
		"total_clients", total)
	return true
}

// unregisterClient removes c and closes its send channel. Safe to call twice.
func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	if ok {
		delete(s.clients, c)
		c.close()
	}
	total := len(s.clients)
	s.mu.Unlock()

	if ok {
		s.logger.Infow("Client disconnected",
			"client_id", c.id,
			"total_clients", total)
	}
}
