package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventTypeStarted EventType = "started"
	EventTypeEnded   EventType = "ended"
)

// SessionEvent is published when a session starts or ends.
type SessionEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Status    Status    `json:"status"`
	Topic     string    `json:"topic,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Replies   int       `json:"replies,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
