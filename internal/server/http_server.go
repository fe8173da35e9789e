package server

import (
	"context"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server for addr and handler with production
// timeouts. WebSocket connections set their own deadlines once upgraded.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for
// in-flight requests until ctx is done. Upgraded sockets are not tracked by
// net/http and are closed by the hub instead.
func ShutdownServer(ctx context.Context, server *http.Server) error {
	return server.Shutdown(ctx)
}
