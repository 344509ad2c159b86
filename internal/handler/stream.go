package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/capitalize-ai/persona-dialogue/internal/middleware"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
	"github.com/capitalize-ai/persona-dialogue/pkg/metrics"
)

// StreamHandler handles SSE streaming of the live conversation.
type StreamHandler struct {
	feed      *Feed
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(feed *Feed, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		feed:      feed,
		heartbeat: 30 * time.Second,
		logger:    log,
	}
}

// ReplayCompleteEvent marks the end of the replayed turns.
type ReplayCompleteEvent struct {
	LastIndex int `json:"last_index"`
	TurnCount int `json:"turn_count"`
}

// HeartbeatEvent keeps idle connections open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /api/v1/conversation/stream
// Supports ?after=N for resuming after the turn with index N.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	after, err := middleware.ParseAfter(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.SSEConnections.Inc()
	defer metrics.SSEConnections.Dec()

	snap, updates, cancel := h.feed.Subscribe()
	defer cancel()

	connected := map[string]string{"status": string(snap.Status)}
	if snap.Session != nil {
		connected["session_id"] = snap.Session.ID
	}
	sendSSEEvent(w, flusher, "connected", connected)

	lastIndex := after
	replayed := 0
	for _, turn := range turnsAfter(snap.Turns, after) {
		sendSSEEvent(w, flusher, updateTurn, turn)
		lastIndex = turn.Index
		replayed++
	}
	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastIndex: lastIndex,
		TurnCount: replayed,
	})

	if snap.Result != nil {
		sendSSEEvent(w, flusher, updateEnded, snap.Result)
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected")
			return

		case u, ok := <-updates:
			if !ok {
				return
			}
			switch u.Event {
			case updateStarted:
				sendSSEEvent(w, flusher, u.Event, u.Session)
			case updateTurn:
				sendSSEEvent(w, flusher, u.Event, u.Turn)
			case updateEnded:
				sendSSEEvent(w, flusher, u.Event, u.Result)
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{Timestamp: time.Now()})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
