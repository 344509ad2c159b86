// Package render draws the dialogue on a terminal: an animated thinking
// indicator while a persona "thinks", then a typewriter reveal of the reply.
package render

import (
	"context"
	"time"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// Renderer is the presentation surface used by the conversation loop.
// ShowThinking and Reveal block until done and return ctx.Err() when
// interrupted.
type Renderer interface {
	ShowThinking(ctx context.Context, label string, d time.Duration) error
	Reveal(ctx context.Context, label, text string) error
	Summary(result model.Result)
}
