package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Mode is who currently drives a conversation.
type Mode string

const (
	ModeAI     Mode = "ai"
	ModeHuman  Mode = "human"
	ModeHybrid Mode = "hybrid"
)

// ParseMode returns the Mode named s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAI, ModeHuman, ModeHybrid:
		return m, nil
	}
	return "", fmt.Errorf("conversation: unknown mode %q", s)
}

// Conversation is a customer conversation owned by one business. It weakly references its
// assigned operator: deleting the operator clears the reference, never the conversation.
type Conversation struct {
	ID          string
	BusinessID  string
	CustomerRef string
	Mode        Mode
	// AssignedEmployeeID is empty when no operator is assigned.
	AssignedEmployeeID string
	AssignedAt         *time.Time
	AIContext          json.RawMessage
	// Version increments on every mutation and guards compare-and-set transitions.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssignedTo reports whether employeeID is the assigned operator.
func (c *Conversation) AssignedTo(employeeID string) bool {
	return c.AssignedEmployeeID != "" && c.AssignedEmployeeID == employeeID
}

// Validate checks the mode/assignment invariant: mode ai if and only if no operator is assigned.
func (c *Conversation) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if (c.Mode == ModeAI) != (c.AssignedEmployeeID == "") {
		return fmt.Errorf("conversation %s: mode %q with assignee %q violates the assignment invariant",
			c.ID, c.Mode, c.AssignedEmployeeID)
	}
	return nil
}
