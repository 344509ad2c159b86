// Package scheduler decides speaking order, builds each persona's context
// window and resolves the thinking delay for a turn.
//
// Every function here is pure: it reads already-validated state and never
// fails.
package scheduler

import (
	"time"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// NextSpeaker returns the persona whose turn it is.
func NextSpeaker(conv *model.Conversation, personas *model.Registry) model.Persona {
	return personas.At(conv.ActiveSpeaker())
}

// BuildContext returns the messages sent to the model on behalf of speaker:
// its instructions as the system entry, then every prior turn in order.
// The speaker's own turns are tagged self; everything else, the seed
// included, is tagged other.
func BuildContext(conv *model.Conversation, speaker model.Persona) []model.ContextMessage {
	turns := conv.Turns()

	messages := make([]model.ContextMessage, 0, len(turns)+1)
	messages = append(messages, model.ContextMessage{
		Role:    model.RoleSystem,
		Content: speaker.Instructions,
	})

	for _, turn := range turns {
		role := model.RoleOther
		if turn.Origin == model.OriginPersona && turn.Speaker == speaker.Name {
			role = model.RoleSelf
		}
		messages = append(messages, model.ContextMessage{
			Role:    role,
			Content: turn.Text,
		})
	}

	return messages
}

// DelayFor returns the thinking delay for the persona reply at turnIndex.
// The seed is not counted: index 0 is the first persona reply.
func DelayFor(turnIndex int, policy model.DelayPolicy) time.Duration {
	if turnIndex == 0 {
		return policy.First
	}
	return policy.Subsequent
}
