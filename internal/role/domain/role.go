package domain

import (
	"time"

	"chatdesk/backend/internal/permission"
)

// Role is a named set of grants. BusinessID is empty for a global role.
type Role struct {
	ID         string
	BusinessID string
	Name       string
	Grants     []permission.Grant
	CreatedAt  time.Time
}

// Global reports whether the role is usable by every business.
func (r *Role) Global() bool { return r.BusinessID == "" }
