package model

import (
	"fmt"
	"time"
)

// DelayPolicy controls how long each persona "thinks" before replying.
type DelayPolicy struct {
	First      time.Duration `json:"first" mapstructure:"first"`
	Subsequent time.Duration `json:"subsequent" mapstructure:"subsequent"`
}

// Validate checks that both delays are non-negative.
func (p DelayPolicy) Validate() error {
	if p.First < 0 {
		return fmt.Errorf("first delay must be >= 0, got %s", p.First)
	}
	if p.Subsequent < 0 {
		return fmt.Errorf("subsequent delay must be >= 0, got %s", p.Subsequent)
	}
	return nil
}
