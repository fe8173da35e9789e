package server

import (
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades GET requests to WebSocket, registers the client
// with the hub and starts its pumps. Every configured socket path is served
// by this one handler, so all of them share the same rooms.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "addr", r.RemoteAddr, "path", r.URL.Path, "err", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg, s.logger)
	id, err := s.hub.Connect(client)
	if err != nil {
		s.logger.Warn("rejecting connection", "addr", r.RemoteAddr, "err", err)
		client.writeCloseMessage()
		client.closeConnection()
		return
	}
	client.id = id

	s.clients.Add(2)
	go func() {
		defer s.clients.Done()
		client.writePump()
	}()
	go func() {
		defer s.clients.Done()
		client.readPump()
	}()
}

// HealthHandler reports that the relay is up together with its current size.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	stats := s.hub.Stats()
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room relay is running! connections=%d rooms=%d", stats.Connections, stats.Rooms)
}
