package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-dialogue/internal/llm"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/internal/scheduler"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
	"github.com/capitalize-ai/persona-dialogue/pkg/metrics"
)

const (
	seedInstructions = "You open conversations. Generate an interesting discussion starter: " +
		"a single question or statement two people could talk about at length."
	seedRequest = "Give me one discussion starter. Reply with the starter only."
)

// takeTurn produces one persona reply. The turn is appended only after it
// was fully revealed.
func (s *ConversationService) takeTurn(ctx context.Context, log *logger.Logger, conv *model.Conversation) error {
	speaker := scheduler.NextSpeaker(conv, s.opts.Personas)
	messages := scheduler.BuildContext(conv, speaker)
	delay := scheduler.DelayFor(conv.Replies(), s.opts.Delays)

	text, err := s.complete(ctx, log, speaker.Name, delay, messages)
	if err != nil {
		return err
	}

	if err := s.renderer.Reveal(ctx, speaker.Name, text); err != nil {
		return err
	}

	turn := conv.Append(model.OriginPersona, speaker.Name, text, s.now())
	s.record(ctx, log, turn)
	conv.Advance()

	metrics.TurnsTotal.WithLabelValues(speaker.Name).Inc()
	log.Debug("turn appended",
		zap.String("persona", speaker.Name),
		zap.Int("index", turn.Index),
		zap.Int("length", len(text)),
	)

	return nil
}

// complete shows the thinking indicator for delay and asks the gateway for a
// reply. Transient failures repeat both steps up to MaxAttempts times and are
// then escalated to fatal.
func (s *ConversationService) complete(
	ctx context.Context,
	log *logger.Logger,
	label string,
	delay time.Duration,
	messages []model.ContextMessage,
) (string, error) {
	var (
		text    string
		attempt int
	)

	operation := func() error {
		attempt++
		metrics.ThinkingDelaySeconds.Observe(delay.Seconds())

		if err := s.renderer.ShowThinking(ctx, label, delay); err != nil {
			return backoff.Permanent(err)
		}

		reply, err := s.gateway.Complete(ctx, messages)
		if err != nil {
			if llm.IsTransient(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		text = reply
		return nil
	}

	notify := func(err error, _ time.Duration) {
		metrics.RetriesTotal.WithLabelValues(label).Inc()
		log.Warn("transient completion failure, retrying",
			zap.String("persona", label),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.MaxAttempts),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(s.opts.MaxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(operation, policy, notify)
	switch {
	case err == nil:
		return text, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case llm.IsTransient(err):
		log.Error("completion retries exhausted",
			zap.String("persona", label),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return "", llm.Escalate(err)
	}
	return "", err
}

// resolveSeed returns the configured seed or asks the gateway for one.
func (s *ConversationService) resolveSeed(ctx context.Context) (string, error) {
	if seed := s.seedText(); seed != "" {
		return seed, nil
	}

	messages := []model.ContextMessage{
		{Role: model.RoleSystem, Content: seedInstructions},
		{Role: model.RoleOther, Content: seedRequest},
	}

	text, err := s.complete(ctx, s.logger, model.SystemLabel, 0, messages)
	if err != nil {
		return "", err
	}

	seed := strings.TrimSpace(text)
	if seed == "" {
		return "", &llm.FatalServiceError{Err: errors.New("generated seed is empty")}
	}
	return seed, nil
}
