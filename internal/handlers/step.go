package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/duotalk/duo-talk-gm/internal/artifacts"
	"github.com/duotalk/duo-talk-gm/internal/services"
	"github.com/duotalk/duo-talk-gm/pkg/gm"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// StepRequest is the turn-processing request body. WorldState may be
// omitted when the session's stored world should be used.
type StepRequest struct {
	SessionID  string            `json:"session_id"`
	TurnNumber int               `json:"turn_number"`
	Speaker    string            `json:"speaker"`
	RawOutput  string            `json:"raw_output"`
	WorldState *world.WorldState `json:"world_state,omitempty"`
}

type StepHandler struct {
	stepper   *gm.Stepper
	storage   services.Storage
	artifacts *artifacts.Writer
	logger    *slog.Logger
}

func NewStepHandler(stepper *gm.Stepper, storage services.Storage, aw *artifacts.Writer, logger *slog.Logger) *StepHandler {
	return &StepHandler{
		stepper:   stepper,
		storage:   storage,
		artifacts: aw,
		logger:    logger,
	}
}

// ServeHTTP handles POST /v1/step: one refereed conversational turn.
func (h *StepHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for step endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Supported methods: POST",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	var req StepRequest
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

	if req.SessionID == "" || req.Speaker == "" {
		w.WriteHeader(http.StatusBadRequest)
		response := ErrorResponse{
			Error: "session_id and speaker fields are required",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	var session *services.Session
	if req.WorldState == nil {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			response := ErrorResponse{
				Error: "world_state omitted and session_id is not a valid session UUID",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
		session, err = h.storage.LoadSession(r.Context(), id)
		if err != nil {
			h.logger.Error("Failed to load session", "error", err, "id", req.SessionID)
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
			w.WriteHeader(http.StatusNotFound)
			response := ErrorResponse{
				Error: "Session not found",
			}
			if err := json.NewEncoder(w).Encode(response); err != nil {
				h.logger.Error("Failed to encode error response", "error", err)
			}
			return
		}
		req.WorldState = session.World
		if req.TurnNumber == 0 {
			req.TurnNumber = session.TurnNumber
		}
	}

	h.artifacts.WriteRaw(req.SessionID, req.TurnNumber, req.RawOutput)

	resp := h.stepper.Step(r.Context(), gm.Request{
		SessionID:  req.SessionID,
		TurnNumber: req.TurnNumber,
		Speaker:    req.Speaker,
		RawOutput:  req.RawOutput,
		World:      req.WorldState,
	})

	h.artifacts.WriteParsed(req.SessionID, req.TurnNumber, resp.Parsed)

	// A retry-suggested response commits nothing: the caller is expected
	// to regenerate and call again with the same turn number.
	if session != nil && !resp.RetrySuggested {
		session.World = resp.World
		session.TurnNumber = req.TurnNumber + 1
		if err := h.storage.SaveSession(r.Context(), session.ID, session); err != nil {
			h.logger.Error("Failed to save session after step", "error", err, "id", session.ID.String())
		}
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode step response", "error", err)
	}
}
