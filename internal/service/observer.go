package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
	"github.com/capitalize-ai/persona-dialogue/pkg/metrics"
)

// Observer receives read-only copies of session progress. Failures are
// logged and never affect the conversation.
type Observer interface {
	Name() string
	SessionStarted(ctx context.Context, session model.Session) error
	TurnAppended(ctx context.Context, turn model.Turn) error
	SessionEnded(ctx context.Context, result model.Result) error
}

// notify calls fn for every observer. Observers still receive the closing
// notification after the run context was cancelled.
func (s *ConversationService) notify(ctx context.Context, log *logger.Logger, fn func(context.Context, Observer) error) {
	if len(s.observers) == 0 {
		return
	}

	octx := context.WithoutCancel(ctx)
	for _, o := range s.observers {
		if err := fn(octx, o); err != nil {
			metrics.ObserverFailures.WithLabelValues(o.Name()).Inc()
			log.Warn("observer notification failed",
				zap.String("observer", o.Name()),
				zap.Error(err),
			)
		}
	}
}
