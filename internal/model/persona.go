package model

import (
	"fmt"
	"strings"
	"unicode"
)

// SystemLabel is the speaker label used for the seed turn.
const SystemLabel = "system"

// ErrorLabel is the label used for error records in the transcript.
const ErrorLabel = "error"

// Persona is a fixed identity/instruction pair driving one side of the dialogue.
type Persona struct {
	Name         string `json:"name" mapstructure:"name"`
	Instructions string `json:"instructions" mapstructure:"instructions"`
}

// Registry holds the two participants of a conversation. It is immutable
// after construction.
type Registry struct {
	personas [2]Persona
}

// NewRegistry validates and stores exactly two personas.
func NewRegistry(personas ...Persona) (*Registry, error) {
	if len(personas) != 2 {
		return nil, fmt.Errorf("exactly two personas are required, got %d", len(personas))
	}

	r := &Registry{}
	for i, p := range personas {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("persona %d: name is required", i)
		}
		if err := checkLabel(name); err != nil {
			return nil, fmt.Errorf("persona %d: %w", i, err)
		}
		if IsReservedLabel(name) {
			return nil, fmt.Errorf("persona %d: name %q is reserved", i, name)
		}
		if strings.TrimSpace(p.Instructions) == "" {
			return nil, fmt.Errorf("persona %q: instructions are required", name)
		}
		r.personas[i] = Persona{Name: name, Instructions: p.Instructions}
	}

	if strings.EqualFold(r.personas[0].Name, r.personas[1].Name) {
		return nil, fmt.Errorf("persona names must be unique, both are %q", r.personas[0].Name)
	}

	return r, nil
}

// At returns the persona at index i (0 or 1).
func (r *Registry) At(i int) Persona {
	return r.personas[i%len(r.personas)]
}

// Len returns the number of personas.
func (r *Registry) Len() int {
	return len(r.personas)
}

// All returns a copy of the personas in speaking order.
func (r *Registry) All() []Persona {
	out := make([]Persona, len(r.personas))
	copy(out, r.personas[:])
	return out
}

// Index returns the position of the persona with the given name, or -1.
func (r *Registry) Index(name string) int {
	for i, p := range r.personas {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// IsReservedLabel reports whether name collides with a transcript role label.
func IsReservedLabel(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SystemLabel, ErrorLabel:
		return true
	}
	return false
}

// LabelSeparator separates fields in transcript headers and may not appear
// in a persona name.
const LabelSeparator = " | "

// checkLabel rejects names that cannot be written on a single header line.
func checkLabel(name string) error {
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return fmt.Errorf("name %q contains control characters", name)
	}
	if strings.Contains(name, LabelSeparator) {
		return fmt.Errorf("name %q contains %q", name, LabelSeparator)
	}
	return nil
}
