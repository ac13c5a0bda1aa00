package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/livechat-platform/internal/middleware"
	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/internal/router"
	"github.com/capitalize-ai/livechat-platform/internal/session"
	"github.com/capitalize-ai/livechat-platform/internal/state"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
)

// ChatHandler exposes the conversation routing core over HTTP.
type ChatHandler struct {
	sessions *session.Manager
	router   *router.Router
	store    state.Store
	logger   *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(sessions *session.Manager, r *router.Router, store state.Store, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		router:   r,
		store:    store,
		logger:   log,
	}
}

// StartSession handles POST /api/v1/chat/sessions
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var req model.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateCustomerID(req.CustomerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateCustomerName(req.CustomerName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateDepartment(req.Department); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Resume-first keeps reconnects on the same conversation.
	existing, err := h.sessions.Resume(ctx, req.CustomerID)
	if err != nil {
		h.logger.Error("failed to resume session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, &model.StartSessionResponse{Conversation: existing, Resumed: true})
		return
	}

	conv, err := h.sessions.Start(ctx, tenantID, req.CustomerID, req.CustomerName, req.Department)
	if err != nil {
		h.logger.Error("failed to start session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, &model.StartSessionResponse{Conversation: conv})
}

// Get handles GET /api/v1/chat/{id}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.store.Get(ctx, conversationID)
	if err != nil {
		h.logger.Error("failed to load conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv == nil || conv.TenantID != middleware.GetTenantID(ctx) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// SendMessage handles POST /api/v1/chat/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.router.HandleMessage(ctx, conversationID, req.Content, req.CustomerName)
	if err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to handle message", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to handle message")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SelectChoice handles POST /api/v1/chat/{id}/choice
func (h *ChatHandler) SelectChoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SelectChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StepID == "" || req.Value == "" {
		writeError(w, http.StatusBadRequest, "step_id and value are required")
		return
	}

	result, err := h.router.SelectChoice(ctx, conversationID, req.StepID, req.Value)
	if err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to apply choice", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to apply choice")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SubmitRating handles POST /api/v1/chat/{id}/rating
func (h *ChatHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SubmitRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StepID == "" {
		writeError(w, http.StatusBadRequest, "step_id is required")
		return
	}

	result, err := h.router.SubmitRating(ctx, conversationID, req.StepID, req.Score)
	if err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to submit rating", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit rating")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Close handles DELETE /api/v1/chat/{id}
func (h *ChatHandler) Close(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sessions.Close(ctx, conversationID); err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to close conversation", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to close conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
