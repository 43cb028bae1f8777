package domain

import "time"

// Employee is an operator acting on behalf of exactly one business.
type Employee struct {
	ID            string
	BusinessID    string
	RoleID        string
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
}

// DisplayName is the name used in conversation system messages.
func (e *Employee) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Email
}
