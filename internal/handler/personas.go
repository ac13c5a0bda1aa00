package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/internal/persona"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
)

// PersonaHandler exposes runtime persona configuration.
type PersonaHandler struct {
	registry *persona.Registry
	logger   *logger.Logger
}

// NewPersonaHandler creates a new persona handler.
func NewPersonaHandler(registry *persona.Registry, log *logger.Logger) *PersonaHandler {
	return &PersonaHandler{registry: registry, logger: log}
}

// List handles GET /api/v1/personas
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"personas": h.registry.List(),
	})
}

// Upsert handles PUT /api/v1/personas/{department}
func (h *PersonaHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	dept := model.Department(chi.URLParam(r, "department"))
	if !dept.Valid() {
		writeError(w, http.StatusBadRequest, "unknown department")
		return
	}

	var req model.UpsertPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.registry.Upsert(dept, req.PersonaUpdate)
	if err != nil {
		if model.IsConfigurationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("failed to update persona", "department", dept, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update persona")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
