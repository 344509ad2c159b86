// Package service runs the persona dialogue: it seeds the conversation,
// drives turn taking, and ends every run with exactly one closing record.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-dialogue/internal/llm"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/internal/render"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
	"github.com/capitalize-ai/persona-dialogue/pkg/metrics"
)

// DefaultMaxAttempts bounds completion attempts per turn when Options leaves
// it unset.
const DefaultMaxAttempts = 3

// Transcript persists a session. Errors are reported as warnings and never
// stop the conversation.
type Transcript interface {
	StartSession(session model.Session) error
	Append(turn model.Turn) error
	EndSession(result model.Result) error
}

// Options configures a conversation run.
type Options struct {
	Personas    *model.Registry
	Delays      model.DelayPolicy
	Seed        string
	MaxTurns    int
	MaxAttempts int
	Clock       func() time.Time
}

// ConversationService owns one conversation from seed to terminal state.
type ConversationService struct {
	gateway    llm.Gateway
	renderer   render.Renderer
	transcript Transcript
	observers  []Observer
	opts       Options
	now        func() time.Time
	logger     *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	gateway llm.Gateway,
	renderer render.Renderer,
	transcript Transcript,
	opts Options,
	log *logger.Logger,
	observers ...Observer,
) (*ConversationService, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if transcript == nil {
		return nil, errors.New("transcript is required")
	}
	if opts.Personas == nil {
		return nil, errors.New("personas are required")
	}
	if err := opts.Delays.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxTurns < 0 {
		return nil, fmt.Errorf("max turns must be >= 0, got %d", opts.MaxTurns)
	}
	if opts.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must be >= 1, got %d", opts.MaxAttempts)
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = logger.NewNop()
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &ConversationService{
		gateway:    gateway,
		renderer:   renderer,
		transcript: transcript,
		observers:  observers,
		opts:       opts,
		now:        now,
		logger:     log,
	}, nil
}

// Run drives the conversation until ctx is cancelled, a fatal service error
// occurs, or the turn limit is reached. It always returns the terminal
// result; the closing transcript marker is written exactly once.
func (s *ConversationService) Run(ctx context.Context) model.Result {
	seed, seedErr := s.resolveSeed(ctx)

	conv := model.NewConversation(model.NewSession(seed, s.now()))
	log := s.logger.WithSession(conv.Session().ID)

	s.startSession(ctx, log, conv.Session())
	if seedErr != nil {
		return s.finish(ctx, log, conv, seedErr)
	}

	seedTurn := conv.Append(model.OriginSystem, model.SystemLabel, seed, s.now())
	s.record(ctx, log, seedTurn)
	conv.SetStatus(model.StatusRunning)

	if err := s.renderer.Reveal(ctx, model.SystemLabel, seed); err != nil {
		return s.finish(ctx, log, conv, err)
	}

	return s.finish(ctx, log, conv, s.loop(ctx, log, conv))
}

func (s *ConversationService) loop(ctx context.Context, log *logger.Logger, conv *model.Conversation) error {
	for {
		if s.opts.MaxTurns > 0 && conv.Replies() >= s.opts.MaxTurns {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.takeTurn(ctx, log, conv); err != nil {
			return err
		}
	}
}

func (s *ConversationService) startSession(ctx context.Context, log *logger.Logger, session model.Session) {
	if err := s.transcript.StartSession(session); err != nil {
		s.persistenceWarning(log, "start_session", err)
	}
	s.notify(ctx, log, func(ctx context.Context, o Observer) error {
		return o.SessionStarted(ctx, session)
	})

	log.Info("conversation started",
		zap.String("topic", session.Topic),
		zap.Int("max_turns", s.opts.MaxTurns),
	)
}

// record persists a turn that has already been appended to the conversation.
func (s *ConversationService) record(ctx context.Context, log *logger.Logger, turn model.Turn) {
	if err := s.transcript.Append(turn); err != nil {
		s.persistenceWarning(log, "append", err)
	}
	s.notify(ctx, log, func(ctx context.Context, o Observer) error {
		return o.TurnAppended(ctx, turn)
	})
}

func (s *ConversationService) finish(ctx context.Context, log *logger.Logger, conv *model.Conversation, err error) model.Result {
	result := model.Result{
		SessionID: conv.Session().ID,
		Replies:   conv.Replies(),
		EndedAt:   s.now(),
	}

	switch {
	case err == nil:
		result.Status = model.StatusEndedNormally
		result.Reason = fmt.Sprintf("turn limit of %d reached", s.opts.MaxTurns)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		result.Status = model.StatusEndedByUser
		result.Reason = "interrupted by user"
	default:
		result.Status = model.StatusEndedByError
		result.Reason = err.Error()
		result.Err = err
	}
	conv.SetStatus(result.Status)

	if werr := s.transcript.EndSession(result); werr != nil {
		s.persistenceWarning(log, "end_session", werr)
	}
	s.notify(ctx, log, func(ctx context.Context, o Observer) error {
		return o.SessionEnded(ctx, result)
	})

	s.renderer.Summary(result)
	metrics.ConversationsTotal.WithLabelValues(string(result.Status)).Inc()

	fields := []zap.Field{
		zap.String("status", string(result.Status)),
		zap.Int("replies", result.Replies),
	}
	if result.Err != nil {
		log.Error("conversation ended", append(fields, zap.Error(result.Err))...)
	} else {
		log.Info("conversation ended", fields...)
	}

	return result
}

func (s *ConversationService) persistenceWarning(log *logger.Logger, op string, err error) {
	metrics.TranscriptWriteFailures.WithLabelValues(op).Inc()
	log.Warn("transcript write failed", zap.String("op", op), zap.Error(err))
}

func (s *ConversationService) seedText() string {
	return strings.TrimSpace(s.opts.Seed)
}
