package repository

import (
	"context"

	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/role/domain"
)

// Repository defines persistence for roles and their grants.
type Repository interface {
	// GrantsForRole returns the grants of roleID when the role is global or belongs to businessID.
	// A role of another business yields no grants.
	GrantsForRole(ctx context.Context, businessID, roleID string) ([]permission.Grant, error)
	// Create inserts the role and its grants.
	Create(ctx context.Context, r *domain.Role) error
}
