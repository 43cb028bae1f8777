package domain

import "time"

// AuditLog is one security audit entry. It is distinct from the system messages a
// conversation records for its own mode changes.
type AuditLog struct {
	ID         string
	BusinessID string
	EmployeeID string
	Action     string
	Resource   string
	IP         string
	Metadata   string
	CreatedAt  time.Time
}
