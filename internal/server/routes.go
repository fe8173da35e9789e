package server

import (
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes returns the ServeMux with the health check, the metrics
// endpoint and one WebSocket route per configured socket path.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	for _, path := range s.cfg.SocketPaths {
		mux.HandleFunc(path, s.WebSocketHandler)
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.SetupRoutes())
}
