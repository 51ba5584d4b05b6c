package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crafthub/craftrelay/bot/session"
	"github.com/crafthub/craftrelay/storage"
	"github.com/crafthub/craftrelay/transport/websocket"
	"github.com/crafthub/craftrelay/validate"
)

const defaultHistoryLimit = 50

// AdminRelay is the slice of the relay the admin endpoints need.
type AdminRelay interface {
	Terminate(id string)
}

// Server represents the REST API server
type Server struct {
	store    storage.Store
	registry *session.Registry
	relay    AdminRelay
	hub      *websocket.Hub
	router   *mux.Router
}

// NewServer creates a new API server
func NewServer(store storage.Store, registry *session.Registry, relay AdminRelay, hub *websocket.Hub) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		relay:    relay,
		hub:      hub,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Connection records and their history
	api.HandleFunc("/connections", s.handleCreateConnection).Methods("POST")
	api.HandleFunc("/connections", s.handleListConnections).Methods("GET")
	api.HandleFunc("/connections/{id}", s.handleGetConnection).Methods("GET")
	api.HandleFunc("/connections/{id}/messages", s.handleGetMessages).Methods("GET")
	api.HandleFunc("/connections/{id}/logs", s.handleGetLogs).Methods("GET")

	// Saved connect presets
	api.HandleFunc("/profiles", s.handleListProfiles).Methods("GET")
	api.HandleFunc("/profiles", s.handleCreateProfile).Methods("POST")
	api.HandleFunc("/profiles/{id}", s.handleUpdateProfile).Methods("PUT")
	api.HandleFunc("/profiles/{id}", s.handleDeleteProfile).Methods("DELETE")

	// Administration
	api.HandleFunc("/admin/connections", s.handleAdminListConnections).Methods("GET")
	api.HandleFunc("/admin/connections/{id}", s.handleAdminDeleteConnection).Methods("DELETE")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func statusForStoreErr(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// limitParam reads a positive "limit" query parameter, falling back to
// defaultHistoryLimit.
func limitParam(r *http.Request) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultHistoryLimit
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}

// Connection Handlers

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req storage.NewConnection
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if result := validate.Connection(req); !result.Valid {
		respondError(w, http.StatusBadRequest, result.Err())
		return
	}

	conn, err := s.store.CreateConnection(req)
	if err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, conn)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.ListConnections())
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.store.GetConnection(vars["id"])
	if err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, conn)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := s.store.GetConnection(vars["id"]); err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, s.store.ChatMessages(vars["id"], limitParam(r)))
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := s.store.GetConnection(vars["id"]); err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, s.store.Logs(vars["id"], limitParam(r)))
}

// Profile Handlers

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	respondJSON(w, http.StatusOK, s.store.ListProfiles(userID))
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req storage.ServerProfile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if result := validate.Profile(req); !result.Valid {
		respondError(w, http.StatusBadRequest, result.Err())
		return
	}

	profile, err := s.store.CreateProfile(req)
	if err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req storage.ServerProfile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if result := validate.Profile(req); !result.Valid {
		respondError(w, http.StatusBadRequest, result.Err())
		return
	}

	profile, err := s.store.UpdateProfile(vars["id"], req)
	if err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.DeleteProfile(vars["id"]); err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Profile %s deleted", vars["id"]),
	})
}

// Admin Handlers

// adminConnection is a connection record annotated with whether a live
// bot session exists for it right now.
type adminConnection struct {
	storage.Connection
	IsActive bool `json:"isActive"`
}

func (s *Server) handleAdminListConnections(w http.ResponseWriter, r *http.Request) {
	records := s.store.ListConnections()
	out := make([]adminConnection, 0, len(records))
	for _, record := range records {
		out = append(out, adminConnection{
			Connection: record,
			IsActive:   s.registry.Active(record.ID),
		})
	}

	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminDeleteConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if _, err := s.store.GetConnection(id); err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	// Tear down the live bot first so nothing keeps writing history for
	// a record that is about to disappear.
	s.relay.Terminate(id)

	if err := s.store.DeleteConnection(id); err != nil {
		respondError(w, statusForStoreErr(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Connection %s terminated", id),
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket unavailable", http.StatusServiceUnavailable)
		return
	}
	s.hub.ServeWS(w, r)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
