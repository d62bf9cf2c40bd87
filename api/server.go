package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/service"
	"github.com/wricardo/parcel-run/internal/ctxlog"
	"github.com/wricardo/parcel-run/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new API server. hub may be nil.
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.withRequestLogger)

	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/move", s.handleMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-move", s.handleBulkMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/hint", s.handleRequestHint).Methods("POST")
	api.HandleFunc("/sessions/{id}/hint/confirm", s.handleConfirmHint).Methods("POST")
	api.HandleFunc("/sessions/{id}/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/sessions/{id}/resume", s.handleResume).Methods("POST")
	api.HandleFunc("/sessions/{id}/retry", s.handleRetry).Methods("POST")
	api.HandleFunc("/sessions/{id}/next", s.handleNextLevel).Methods("POST")
	api.HandleFunc("/sessions/{id}/choice", s.handleChoose).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Levels and progress
	api.HandleFunc("/levels", s.handleListLevels).Methods("GET")
	api.HandleFunc("/levels/{id:[0-9]+}", s.handleGetLevel).Methods("GET")
	api.HandleFunc("/progress", s.handleGetProgress).Methods("GET")
	api.HandleFunc("/progress", s.handleResetProgress).Methods("DELETE")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// withRequestLogger attaches a request-scoped logger to the context
func (s *Server) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctxlog.WithLogger(r.Context(), logger)))
		logger.Debug("request served", "duration", time.Since(start))
	})
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

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, engine.ErrLevelNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidLevel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrNoNextLevel),
		errors.Is(err, engine.ErrNoLevelLoaded):
		return http.StatusConflict
	case errors.Is(err, service.ErrLevelLocked):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, service.ErrNoMoves),
		errors.Is(err, engine.ErrUnknownChoice):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		ctxlog.FromContext(r.Context()).Error("request failed", "error", err)
	}
	respondError(w, status, err.Error())
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) broadcast(sessionID string, state *engine.GameState) {
	if s.hub != nil && state != nil {
		s.hub.BroadcastToSession(sessionID, state)
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level int `json:"level,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.service.CreateSession(r.Context(), req.Level)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < total {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, "session_closed", nil)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Move(r.Context(), sessionID, req.Direction)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	s.broadcast(sessionID, result.GameState)

	logger := ctxlog.FromContext(r.Context())
	if step := result.Step; step != nil {
		logger.Info("move",
			"session", sessionID, "dir", step.Dir,
			"from", step.From, "to", step.To, "tile", step.TileChar,
			"fuel", step.FuelAfter, "delivered", step.Delivered)
	} else if a := result.AttemptedTo; a != nil {
		logger.Info("move blocked",
			"session", sessionID, "row", a.Row, "col", a.Col,
			"tile", a.TileChar, "type", a.TileType)
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Moves []string `json:"moves"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.BulkMove(r.Context(), sessionID, req.Moves)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	s.broadcast(sessionID, result.GameState)

	ctxlog.FromContext(r.Context()).Info("bulk move",
		"session", sessionID,
		"executed", result.MovesExecuted, "requested", result.RequestedMoves,
		"stop", result.StopReasonCode, "end", result.EndPos, "fuel", result.EndFuel,
		"delivered", result.PackagesDelivered)

	respondJSON(w, http.StatusOK, result)
}

// actionHandler adapts a session action to an HTTP handler
func (s *Server) actionHandler(action func(ctx context.Context, sessionID string) (*service.ActionResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["id"]

		result, err := action(r.Context(), sessionID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		s.broadcast(sessionID, result.GameState)
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleRequestHint(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(s.service.RequestHint)(w, r)
}

func (s *Server) handleConfirmHint(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Confirm *bool `json:"confirm"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Confirm == nil {
		respondError(w, http.StatusBadRequest, `Request body must be {"confirm": true|false}`)
		return
	}

	s.actionHandler(func(ctx context.Context, sessionID string) (*service.ActionResult, error) {
		return s.service.ConfirmHint(ctx, sessionID, *req.Confirm)
	})(w, r)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(s.service.Pause)(w, r)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(s.service.Resume)(w, r)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(s.service.Retry)(w, r)
}

func (s *Server) handleNextLevel(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(s.service.NextLevel)(w, r)
}

// handleChoose answers a dialog: resume, retry, next_level, exit, hint_yes or hint_no
func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice string `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Choice == "" {
		respondError(w, http.StatusBadRequest, `Request body must be {"choice": "<choice>"}`)
		return
	}

	s.actionHandler(func(ctx context.Context, sessionID string) (*service.ActionResult, error) {
		return s.service.Choose(ctx, sessionID, req.Choice)
	})(w, r)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}

	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetMoveHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Level and Progress Handlers

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.service.ListLevels(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, levels)
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	levelID, err := strconv.Atoi(strings.TrimSpace(mux.Vars(r)["id"]))
	if err != nil || levelID < 1 {
		respondError(w, http.StatusBadRequest, "Invalid level id")
		return
	}

	level, err := s.service.GetLevel(r.Context(), levelID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, level)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.service.GetProgress(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, progress)
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.service.ResetProgress(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, progress)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "live updates are disabled")
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session parameter required")
		return
	}

	state, err := s.service.GetGameState(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
	// Registration is processed before this update, so the watcher starts with the current state
	s.hub.BroadcastToSession(sessionID, state)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
