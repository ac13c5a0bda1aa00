package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/livechat-platform/internal/middleware"
	"github.com/capitalize-ai/livechat-platform/internal/model"
	natsclient "github.com/capitalize-ai/livechat-platform/internal/nats"
	"github.com/capitalize-ai/livechat-platform/internal/state"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
	"github.com/capitalize-ai/livechat-platform/pkg/metrics"
)

const (
	sseHeartbeatInterval = 30 * time.Second
	sseReplayBatch       = 100
	sseBufferSize        = 64
)

// EventsHandler streams conversation events to clients over SSE.
type EventsHandler struct {
	bus    *natsclient.EventBus
	store  state.Store
	logger *logger.Logger
}

// NewEventsHandler creates a new SSE events handler.
func NewEventsHandler(bus *natsclient.EventBus, store state.Store, log *logger.Logger) *EventsHandler {
	return &EventsHandler{bus: bus, store: store, logger: log}
}

// Stream handles GET /api/v1/chat/{id}/events
//
// Replays events after ?after_sequence, then streams live events until the
// client disconnects. Heartbeat comments keep proxies from timing out the
// connection.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")
	tenantID := middleware.GetTenantID(ctx)

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
	if conv == nil || conv.TenantID != tenantID {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	afterSequence := uint64(0)
	if raw := r.URL.Query().Get("after_sequence"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after_sequence")
			return
		}
		afterSequence = parsed
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.SSEConnectionsActive.Inc()
	defer metrics.SSEConnectionsActive.Dec()

	// Subscribe before replay so events published during the replay are
	// not lost; duplicates are filtered by sequence below.
	live := make(chan *model.ChatEvent, sseBufferSize)
	unsubscribe, err := h.bus.SubscribeLive(tenantID, conversationID, live)
	if err != nil {
		h.logger.Error("failed to subscribe to events", "conversation_id", conversationID, "error", err)
		sendSSEEvent(w, "error", map[string]string{"message": "subscription failed"})
		flusher.Flush()
		return
	}
	defer unsubscribe()

	lastSequence := afterSequence
	for {
		events, last, more, err := h.bus.FetchEvents(ctx, tenantID, conversationID, lastSequence, sseReplayBatch)
		if err != nil {
			h.logger.Warn("event replay failed", "conversation_id", conversationID, "error", err)
			break
		}
		for i := range events {
			sendSSEEvent(w, string(events[i].Type), &events[i])
		}
		if last > lastSequence {
			lastSequence = last
		}
		flusher.Flush()
		if !more {
			break
		}
	}

	sendSSEEvent(w, "ready", map[string]uint64{"last_sequence": lastSequence})
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event := <-live:
			if event.Sequence != 0 && event.Sequence <= lastSequence {
				continue
			}
			if event.Sequence > lastSequence {
				lastSequence = event.Sequence
			}
			sendSSEEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
}
