package diagnostics

import (
	"context"
	"log/slog"
	"net/http"
)

// Server runs the diagnostics WebSocket endpoint as its own HTTP server,
// separate from the Prometheus /metrics server, so a diagnostics viewer
// never shares a listener with scrape traffic.
type Server struct {
	log *slog.Logger
	srv *http.Server
}

// NewServer creates a diagnostics server listening on addr at /ws.
func NewServer(addr string, hub *Hub) *Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	return &Server{log: hub.log, srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start launches the server in a goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("diagnostics: server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
