// Package server wires HTTP handlers into a ServeMux for the Roomcast
// application.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the entry page (which also absorbs unknown paths), the health
// check, and the WebSocket endpoint.
func SetupRoutes(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.IndexHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	return mux
}
