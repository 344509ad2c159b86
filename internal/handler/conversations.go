// Package handler provides the read-only observer HTTP API for a running
// dialogue.
package handler

import (
	"net/http"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
)

// ConversationHandler serves the live conversation state.
type ConversationHandler struct {
	feed     *Feed
	personas *model.Registry
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(feed *Feed, personas *model.Registry, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		feed:     feed,
		personas: personas,
		logger:   log,
	}
}

// ConversationResponse describes the live conversation without its turns.
type ConversationResponse struct {
	Session  *model.Session  `json:"session,omitempty"`
	Status   model.Status    `json:"status"`
	Replies  int             `json:"replies"`
	Turns    int             `json:"turns"`
	Personas []model.Persona `json:"personas"`
	Result   *model.Result   `json:"result,omitempty"`
}

// Get handles GET /api/v1/conversation
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap := h.feed.Snapshot()
	if snap.Session == nil {
		writeError(w, http.StatusNotFound, "no conversation started")
		return
	}

	var personas []model.Persona
	if h.personas != nil {
		personas = h.personas.All()
	}

	writeJSON(w, http.StatusOK, &ConversationResponse{
		Session:  snap.Session,
		Status:   snap.Status,
		Replies:  snap.Replies,
		Turns:    len(snap.Turns),
		Personas: personas,
		Result:   snap.Result,
	})
}
