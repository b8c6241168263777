package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duotalk/duo-talk-gm/internal/artifacts"
	"github.com/duotalk/duo-talk-gm/internal/services"
	"github.com/duotalk/duo-talk-gm/pkg/gm"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SessionHandler struct {
	storage   services.Storage
	stepper   *gm.Stepper
	artifacts *artifacts.Writer
	logger    *slog.Logger
}

func NewSessionHandler(storage services.Storage, stepper *gm.Stepper, aw *artifacts.Writer, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		storage:   storage,
		stepper:   stepper,
		artifacts: aw,
		logger:    logger,
	}
}

// CreateSessionRequest defines the request body for creating a session
type CreateSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ServeHTTP handles HTTP requests for session operations
// Routes:
// POST /v1/sessions         - Create new session from a scenario
// GET /v1/sessions/{id}     - Read session by ID
// DELETE /v1/sessions/{id}  - Delete session by ID
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions")
	var sessionID uuid.UUID
	var err error

	if path != "" && path != "/" {
		idStr := strings.Trim(path, "/")
		sessionID, err = uuid.Parse(idStr)
		if err != nil {
			h.logger.Warn("Invalid session ID", "id", idStr, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "Invalid session ID format",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
	}

	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)

	case http.MethodGet:
		if sessionID == uuid.Nil {
			h.logger.Warn("GET request without session ID")
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "Session ID is required for GET requests",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
		h.handleRead(w, r, sessionID)

	case http.MethodDelete:
		if sessionID == uuid.Nil {
			h.logger.Warn("DELETE request without session ID")
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "Session ID is required for DELETE requests",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
		h.handleDelete(w, r, sessionID)

	default:
		h.logger.Warn("Method not allowed for session endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Supported methods: POST, GET, DELETE",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Creating new session")

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Invalid JSON in request body",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if req.ScenarioID == "" {
		h.logger.Warn("Missing required field: scenario_id")
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "scenario_id field is required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	world, _, hash, err := h.storage.LoadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		h.logger.Warn("Failed to load scenario", "scenario_id", req.ScenarioID, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "Failed to load scenario: " + err.Error(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	session := &services.Session{
		ID:           uuid.New(),
		ScenarioID:   req.ScenarioID,
		ScenarioHash: hash,
		World:        world,
		CreatedAt:    time.Now(),
	}

	if err := h.storage.SaveSession(r.Context(), session.ID, session); err != nil {
		h.logger.Error("Failed to save new session", "error", err, "id", session.ID.String())
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to create session",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	h.artifacts.WriteWorldSnapshot(session.ID.String(), session.World)

	h.logger.Debug("Session created successfully", "id", session.ID.String(), "scenario_id", req.ScenarioID)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(session); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	session, err := h.storage.LoadSession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to load session", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to load session",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if session == nil {
		h.logger.Warn("Session not found", "id", sessionID.String())
		w.WriteHeader(http.StatusNotFound)
		response := ErrorResponse{
			Error: "Session not found",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(session); err != nil {
		h.logger.Error("Failed to encode session response", "error", err)
	}
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if err := h.storage.DeleteSession(r.Context(), sessionID); err != nil {
		h.logger.Error("Failed to delete session", "error", err, "id", sessionID.String())
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to delete session",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	if h.stepper != nil {
		h.stepper.EndSession(sessionID.String())
	}
	h.logger.Debug("Session deleted successfully", "id", sessionID.String())
	w.WriteHeader(http.StatusNoContent)
}
