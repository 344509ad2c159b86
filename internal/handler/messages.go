package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/persona-dialogue/internal/middleware"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// TurnHandler serves the turns of the live conversation.
type TurnHandler struct {
	feed *Feed
}

// NewTurnHandler creates a new turn handler.
func NewTurnHandler(feed *Feed) *TurnHandler {
	return &TurnHandler{feed: feed}
}

// ListTurnsResponse is a page of turns.
type ListTurnsResponse struct {
	Turns     []model.Turn `json:"turns"`
	HasMore   bool         `json:"has_more"`
	LastIndex int          `json:"last_index"`
}

// List handles GET /api/v1/conversation/turns
// Supports ?after=N to page past the turn with index N, and ?limit=M.
func (h *TurnHandler) List(w http.ResponseWriter, r *http.Request) {
	after, err := middleware.ParseAfter(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := middleware.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	turns := turnsAfter(h.feed.Snapshot().Turns, after)
	resp := &ListTurnsResponse{Turns: []model.Turn{}, LastIndex: after}
	if len(turns) > limit {
		turns = turns[:limit]
		resp.HasMore = true
	}
	if len(turns) > 0 {
		resp.Turns = turns
		resp.LastIndex = turns[len(turns)-1].Index
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversation/turns/{index}
func (h *TurnHandler) Get(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid turn index")
		return
	}

	turns := h.feed.Snapshot().Turns
	if index >= len(turns) {
		writeError(w, http.StatusNotFound, "turn not found")
		return
	}

	writeJSON(w, http.StatusOK, turns[index])
}

func turnsAfter(turns []model.Turn, after int) []model.Turn {
	start := after + 1
	if start > len(turns) {
		start = len(turns)
	}
	return turns[start:]
}
