package nats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// Publisher is the subset of StreamManager used by Mirror.
type Publisher interface {
	PublishTurn(ctx context.Context, turn model.Turn) (uint64, error)
	PublishEvent(ctx context.Context, event model.SessionEvent) (uint64, error)
}

// Mirror republishes session progress onto JetStream.
type Mirror struct {
	pub     Publisher
	timeout time.Duration
	now     func() time.Time
	topic   string
}

// NewMirror creates a mirror that bounds each publish by timeout.
func NewMirror(pub Publisher, timeout time.Duration) *Mirror {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Mirror{pub: pub, timeout: timeout, now: time.Now}
}

// Name identifies the mirror in logs and metrics.
func (m *Mirror) Name() string {
	return "nats"
}

// SessionStarted publishes a started event.
func (m *Mirror) SessionStarted(ctx context.Context, session model.Session) error {
	m.topic = session.Topic
	return m.publishEvent(ctx, model.SessionEvent{
		SessionID: session.ID,
		Type:      model.EventTypeStarted,
		Status:    model.StatusRunning,
		Topic:     session.Topic,
	})
}

// TurnAppended publishes the turn.
func (m *Mirror) TurnAppended(ctx context.Context, turn model.Turn) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.pub.PublishTurn(ctx, turn)
	return err
}

// SessionEnded publishes an ended event carrying the terminal status.
func (m *Mirror) SessionEnded(ctx context.Context, result model.Result) error {
	return m.publishEvent(ctx, model.SessionEvent{
		SessionID: result.SessionID,
		Type:      model.EventTypeEnded,
		Status:    result.Status,
		Topic:     m.topic,
		Reason:    result.Reason,
		Replies:   result.Replies,
	})
}

func (m *Mirror) publishEvent(ctx context.Context, event model.SessionEvent) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = m.now()

	_, err := m.pub.PublishEvent(ctx, event)
	return err
}
