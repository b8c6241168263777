package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/duotalk/duo-talk-gm/internal/services"
)

type ScenarioHandler struct {
	log     *slog.Logger
	storage services.Storage
}

func NewScenarioHandler(log *slog.Logger, storage services.Storage) *ScenarioHandler {
	return &ScenarioHandler{
		log:     log,
		storage: storage,
	}
}

// ServeHTTP handles scenario lookups.
// Routes:
// GET /v1/scenarios        - List registry entries
// GET /v1/scenarios/{id}   - Initial world state for one scenario
func (h *ScenarioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		response := ErrorResponse{
			Error: "Method not allowed. Supported methods: GET",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.log.Error("Failed to encode error response", "error", err)
		}
		return
	}

	scenarioID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/scenarios"), "/")
	if scenarioID == "" {
		h.handleList(w, r)
		return
	}
	h.handleGet(w, r, scenarioID)
}

func (h *ScenarioHandler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.storage.ListScenarios(r.Context())
	if err != nil {
		h.log.Error("Failed to list scenarios", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		response := ErrorResponse{
			Error: "Failed to list scenarios",
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.log.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		h.log.Error("Failed to encode scenario list", "error", err)
	}
}

func (h *ScenarioHandler) handleGet(w http.ResponseWriter, r *http.Request, scenarioID string) {
	world, entry, hash, err := h.storage.LoadScenario(r.Context(), scenarioID)
	if err != nil {
		h.log.Warn("Failed to load scenario", "scenario_id", scenarioID, "error", err)
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		response := ErrorResponse{
			Error: "Failed to load scenario: " + err.Error(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.log.Error("Failed to encode error response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"entry":         entry,
		"scenario_hash": hash,
		"world_state":   world,
	}); err != nil {
		h.log.Error("Failed to encode scenario response", "error", err)
	}
}
