package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/metrics"
	"github.com/Tyrowin/roomrelay/internal/relay"
)

// Server hosts the relay hub behind HTTP: the WebSocket endpoints, the
// health check and the metrics endpoint. It is constructed once in main and
// owns the listener and the client pump goroutines.
type Server struct {
	cfg      *Config
	hub      *relay.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger
	origins  *originPolicy
	upgrader websocket.Upgrader

	startOnce  sync.Once
	startErr   error
	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener

	clients sync.WaitGroup
}

// New creates a Server for hub. A nil cfg uses the defaults.
func New(cfg *Config, hub *relay.Hub, m *metrics.Metrics, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	s := &Server{
		cfg:     &sanitized,
		hub:     hub,
		metrics: m,
		logger:  logger,
		origins: newOriginPolicy(sanitized.AllowedOrigins, logger),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Start binds the listener and serves in the background. Only the first
// call does any work; later calls return the first call's result. A bind
// failure is returned as a *TransportInitError.
func (s *Server) Start() error {
	s.startOnce.Do(func() {
		ln, err := net.Listen("tcp", s.cfg.Port)
		if err != nil {
			s.startErr = &TransportInitError{Addr: s.cfg.Port, Err: err}
			return
		}

		httpServer := CreateServer(s.cfg.Port, s.Handler())

		s.mu.Lock()
		s.listener = ln
		s.httpServer = httpServer
		s.mu.Unlock()

		s.logger.Info("server listening", "addr", ln.Addr().String(), "socket_paths", s.cfg.SocketPaths)
		go func() {
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("server stopped unexpectedly", "err", err)
			}
		}()
	})
	return s.startErr
}

// Addr returns the bound listener address, or "" before a successful Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting HTTP requests, shuts the hub down (closing every
// client) and waits for the client pumps to exit, all bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	var errs []error
	if httpServer != nil {
		if err := ShutdownServer(ctx, httpServer); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := s.waitForClients(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// waitForClients blocks until every pump goroutine has returned or ctx is done.
func (s *Server) waitForClients(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all client pumps stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("client pumps still running at shutdown deadline")
		return ctx.Err()
	}
}
