package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppend(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	conv := NewConversation(NewSession("weather", start))

	seed := conv.Append(OriginSystem, "", "Discuss the weather.", start)
	assert.True(t, seed.IsSeed())
	assert.Equal(t, SystemLabel, seed.Label())
	assert.Equal(t, conv.Session().ID, seed.SessionID)

	reply := conv.Append(OriginPersona, "A", "Cloudy.", start.Add(time.Second))
	assert.Equal(t, 1, reply.Index)
	assert.Equal(t, "A", reply.Label())

	require.Equal(t, 2, conv.Len())
	assert.Equal(t, 1, conv.Replies())
}

func TestConversationTimestampsAreMonotonic(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	conv := NewConversation(NewSession("", start))

	conv.Append(OriginSystem, "", "seed", start)
	late := conv.Append(OriginPersona, "A", "reply", start.Add(-time.Minute))

	assert.Equal(t, start, late.Timestamp)
}

func TestConversationTurnsReturnsCopy(t *testing.T) {
	conv := NewConversation(NewSession("", time.Now()))
	conv.Append(OriginSystem, "", "seed", time.Now())

	turns := conv.Turns()
	turns[0].Text = "changed"
	assert.Equal(t, "seed", conv.Turns()[0].Text)
}

func TestConversationTerminalStatusIsFinal(t *testing.T) {
	conv := NewConversation(NewSession("", time.Now()))
	assert.Equal(t, StatusInit, conv.Status())

	conv.SetStatus(StatusRunning)
	conv.SetStatus(StatusEndedByUser)
	conv.SetStatus(StatusRunning)

	assert.Equal(t, StatusEndedByUser, conv.Status())
}

func TestConversationAdvance(t *testing.T) {
	conv := NewConversation(NewSession("", time.Now()))
	assert.Equal(t, 0, conv.ActiveSpeaker())
	conv.Advance()
	assert.Equal(t, 1, conv.ActiveSpeaker())
	conv.Advance()
	assert.Equal(t, 0, conv.ActiveSpeaker())
}

func TestDelayPolicyValidate(t *testing.T) {
	assert.NoError(t, DelayPolicy{First: 0, Subsequent: time.Second}.Validate())
	assert.Error(t, DelayPolicy{First: -time.Second}.Validate())
	assert.Error(t, DelayPolicy{Subsequent: -time.Second}.Validate())
}
