package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/pkg/metrics"
)

const tracerName = "github.com/capitalize-ai/persona-dialogue/internal/llm"

// ErrEmptyCompletion is wrapped in a TransientServiceError when the model
// returns no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Gateway turns a role-tagged context window into a single reply. Errors are
// *TransientServiceError, *FatalServiceError or a context error.
type Gateway interface {
	Complete(ctx context.Context, messages []model.ContextMessage) (string, error)
}

// GatewayConfig holds per-request settings applied by a ClientGateway.
type GatewayConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// ClientGateway adapts a provider Client to the Gateway interface.
type ClientGateway struct {
	client Client
	cfg    GatewayConfig
	tracer trace.Tracer
}

// GatewayOption configures a ClientGateway.
type GatewayOption func(*ClientGateway)

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) GatewayOption {
	return func(g *ClientGateway) {
		g.tracer = tp.Tracer(tracerName)
	}
}

// NewGateway creates a gateway over client.
func NewGateway(client Client, cfg GatewayConfig, opts ...GatewayOption) *ClientGateway {
	g := &ClientGateway{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete sends messages to the provider and returns the reply text.
func (g *ClientGateway) Complete(ctx context.Context, messages []model.ContextMessage) (string, error) {
	ctx, span := g.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", g.client.Name()),
		attribute.String("llm.model", g.cfg.Model),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	req := BuildRequest(messages, g.cfg)

	start := time.Now()
	resp, err := g.client.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = &TransientServiceError{Provider: g.client.Name(), Err: ErrEmptyCompletion}
	}
	if err != nil {
		err = Classify(g.client.Name(), err)
		metrics.RecordLLMCall(g.client.Name(), g.cfg.Model, errorClass(err), elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, errorClass(err))
		return "", err
	}

	metrics.RecordLLMCall(g.client.Name(), g.cfg.Model, "success", elapsed, resp.TokensIn, resp.TokensOut)
	span.SetAttributes(
		attribute.String("llm.response_model", resp.Model),
		attribute.String("llm.stop_reason", resp.StopReason),
		attribute.Int64("llm.latency_ms", resp.LatencyMs),
		attribute.Int("llm.tokens_in", resp.TokensIn),
		attribute.Int("llm.tokens_out", resp.TokensOut),
	)
	return resp.Content, nil
}

// BuildRequest maps a context window onto a provider request: system entries
// become the system prompt, self entries the assistant role and other entries
// the user role.
func BuildRequest(messages []model.ContextMessage, cfg GatewayConfig) *CompletionRequest {
	req := &CompletionRequest{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)
		case model.RoleSelf:
			req.Messages = append(req.Messages, ChatMessage{Role: RoleAssistant, Content: msg.Content})
		default:
			req.Messages = append(req.Messages, ChatMessage{Role: RoleUser, Content: msg.Content})
		}
	}
	req.System = strings.Join(system, "\n\n")

	return req
}

func errorClass(err error) string {
	switch {
	case IsTransient(err):
		return "transient"
	case IsFatal(err):
		return "fatal"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
