package model

import (
	"time"
)

// Role tags a context message relative to the persona it is built for.
type Role string

const (
	RoleSystem Role = "system"
	RoleSelf   Role = "self"
	RoleOther  Role = "other"
)

// Origin identifies who produced a turn.
type Origin string

const (
	OriginSystem  Origin = "system"
	OriginPersona Origin = "persona"
)

// Turn is one immutable utterance in a conversation.
type Turn struct {
	// Identity
	Index     int    `json:"index"`
	SessionID string `json:"session_id"`

	// Content
	Origin  Origin `json:"origin"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`

	// Timestamps
	Timestamp time.Time `json:"timestamp"`
}

// IsSeed reports whether the turn is the opening seed.
func (t Turn) IsSeed() bool {
	return t.Origin == OriginSystem
}

// Label returns the speaker label used in transcripts and on the console.
func (t Turn) Label() string {
	if t.Origin == OriginSystem {
		return SystemLabel
	}
	return t.Speaker
}

// ContextMessage is one role-tagged entry of a model-ready context window.
type ContextMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
