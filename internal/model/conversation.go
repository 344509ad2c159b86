// Package model defines data structures for the persona dialogue.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusInit          Status = "init"
	StatusRunning       Status = "running"
	StatusEndedByUser   Status = "ended_by_user"
	StatusEndedByError  Status = "ended_by_error"
	StatusEndedNormally Status = "ended_normally"
)

// Terminal reports whether no further turns can be produced.
func (s Status) Terminal() bool {
	switch s {
	case StatusEndedByUser, StatusEndedByError, StatusEndedNormally:
		return true
	}
	return false
}

// Session describes one run of the dialogue.
type Session struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	StartedAt time.Time `json:"started_at"`
}

// NewSession creates a session with a time-ordered id.
func NewSession(topic string, startedAt time.Time) Session {
	return Session{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Topic:     topic,
		StartedAt: startedAt,
	}
}

// Result is the outcome of a conversation run.
type Result struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Replies   int       `json:"replies"`
	EndedAt   time.Time `json:"ended_at"`
	Err       error     `json:"-"`
}

// Conversation is the ordered, append-only record of a dialogue. It is owned
// by a single goroutine and is not safe for concurrent use.
type Conversation struct {
	session       Session
	turns         []Turn
	activeSpeaker int
	status        Status
}

// NewConversation creates an empty conversation in the init state.
func NewConversation(session Session) *Conversation {
	return &Conversation{
		session: session,
		status:  StatusInit,
	}
}

// Session returns the session descriptor.
func (c *Conversation) Session() Session {
	return c.session
}

// Status returns the current state.
func (c *Conversation) Status() Status {
	return c.status
}

// SetStatus moves the conversation to s. Terminal states are final.
func (c *Conversation) SetStatus(s Status) {
	if c.status.Terminal() {
		return
	}
	c.status = s
}

// ActiveSpeaker returns the index of the persona that speaks next.
func (c *Conversation) ActiveSpeaker() int {
	return c.activeSpeaker
}

// Advance flips the active speaker.
func (c *Conversation) Advance() {
	c.activeSpeaker = 1 - c.activeSpeaker
}

// Append adds a turn and returns the stored copy. Timestamps never go
// backwards: a timestamp earlier than the previous turn is clamped to it.
func (c *Conversation) Append(origin Origin, speaker, text string, at time.Time) Turn {
	if n := len(c.turns); n > 0 && at.Before(c.turns[n-1].Timestamp) {
		at = c.turns[n-1].Timestamp
	}

	turn := Turn{
		Index:     len(c.turns),
		SessionID: c.session.ID,
		Origin:    origin,
		Speaker:   speaker,
		Text:      text,
		Timestamp: at,
	}
	c.turns = append(c.turns, turn)
	return turn
}

// Turns returns a copy of all turns in conversational order.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns including the seed.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Replies returns the number of persona turns, excluding the seed.
func (c *Conversation) Replies() int {
	n := 0
	for _, t := range c.turns {
		if t.Origin == OriginPersona {
			n++
		}
	}
	return n
}
