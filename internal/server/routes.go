package server

import "net/http"

// RegisterRoutes registers the API routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("GET /api/test", s.health)

	mux.HandleFunc("GET /api/users", s.listUsers)
	mux.HandleFunc("POST /api/users", s.createUser)
	mux.HandleFunc("DELETE /api/users/{id}", s.deleteUser)
	mux.HandleFunc("POST /api/users/deleteMany", s.deleteManyUsers)

	mux.HandleFunc("GET /api/chats", s.listChats)
	mux.HandleFunc("POST /api/chats", s.createChat)
	mux.HandleFunc("DELETE /api/chats/{id}", s.deleteChat)
	mux.HandleFunc("POST /api/chats/deleteMany", s.deleteManyChats)
	mux.HandleFunc("GET /api/chats/{chatId}/messages", s.listMessages)
	mux.HandleFunc("POST /api/chats/{chatId}/messages", s.postMessage)

	mux.HandleFunc("GET /api/drivers", s.listDrivers)
	mux.HandleFunc("GET /api/drivers/{driverId}/stats", s.driverStats)

	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.notFound)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	ok(w, map[string]string{"name": AppName})
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	fail(w, http.StatusNotFound, "not found")
}
