package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrProfileInvalid marks an agent profile missing a required field.
var ErrProfileInvalid = errors.New("models: invalid agent profile")

// AgentProfile identifies a learner. Required fields are validated when the
// profile is loaded, not when it is used.
type AgentProfile struct {
	AgentID     string    `json:"agent_id" db:"agent_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the required profile fields.
func (p AgentProfile) Validate() error {
	if p.AgentID == "" {
		return fmt.Errorf("%w: empty agent id", ErrProfileInvalid)
	}
	if p.DisplayName == "" {
		return fmt.Errorf("%w: agent %s: empty display name", ErrProfileInvalid, p.AgentID)
	}
	return nil
}
