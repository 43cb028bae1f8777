package repository

import (
	"context"

	"chatdesk/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByBusiness returns the newest entries of the business first.
	ListByBusiness(ctx context.Context, businessID string, limit, offset int32) ([]*domain.AuditLog, error)
}
