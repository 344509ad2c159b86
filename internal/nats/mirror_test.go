package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

type fakePublisher struct {
	turns  []model.Turn
	events []model.SessionEvent
	err    error
}

func (p *fakePublisher) PublishTurn(ctx context.Context, turn model.Turn) (uint64, error) {
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}
	p.turns = append(p.turns, turn)
	return uint64(len(p.turns)), p.err
}

func (p *fakePublisher) PublishEvent(ctx context.Context, event model.SessionEvent) (uint64, error) {
	p.events = append(p.events, event)
	return uint64(len(p.events)), p.err
}

func TestMirrorPublishesSession(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub, time.Second)
	ctx := context.Background()

	session := model.Session{ID: "s1", Topic: "Discuss the weather."}
	require.NoError(t, m.SessionStarted(ctx, session))
	require.NoError(t, m.TurnAppended(ctx, model.Turn{SessionID: "s1", Origin: model.OriginPersona, Speaker: "A", Text: "Grey."}))
	require.NoError(t, m.SessionEnded(ctx, model.Result{SessionID: "s1", Status: model.StatusEndedByUser, Replies: 1}))

	require.Len(t, pub.turns, 1)
	assert.Equal(t, "Grey.", pub.turns[0].Text)

	require.Len(t, pub.events, 2)
	assert.Equal(t, model.EventTypeStarted, pub.events[0].Type)
	assert.Equal(t, model.StatusRunning, pub.events[0].Status)
	assert.NotEmpty(t, pub.events[0].ID)

	assert.Equal(t, model.EventTypeEnded, pub.events[1].Type)
	assert.Equal(t, model.StatusEndedByUser, pub.events[1].Status)
	assert.Equal(t, "Discuss the weather.", pub.events[1].Topic)
	assert.Equal(t, 1, pub.events[1].Replies)
	assert.NotEqual(t, pub.events[0].ID, pub.events[1].ID)
}

func TestMirrorReturnsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	m := NewMirror(pub, 0)

	assert.Error(t, m.TurnAppended(context.Background(), model.Turn{SessionID: "s1"}))
	assert.Equal(t, "nats", m.Name())
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "dialogue.s-1.turn.A", TurnSubject("s-1", "A"))
	assert.Equal(t, "dialogue.s-1.turn.Dr__Who", TurnSubject("s-1", "Dr. Who"))
	assert.Equal(t, "dialogue.s-1.event.ended_by_error", EventSubject("s-1", model.StatusEndedByError))
	assert.Equal(t, "dialogue.s-1.turn.>", SessionFilter("s-1"))
	assert.Equal(t, "dialogue._.turn._", TurnSubject("", ""))
}
