package repository

import (
	"context"
	"time"

	"chatdesk/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	// GetByID returns the session, or (nil, nil) if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Revoke sets revoked_at if the session is not already revoked. Returns false otherwise.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	// RevokeAllForEmployee revokes every live session of the employee and returns how many were revoked.
	RevokeAllForEmployee(ctx context.Context, employeeID string, at time.Time) (int64, error)
	// Touch sets last_activity_at on a usable session. expires_at is never changed.
	// Returns false when the session is missing, revoked or expired at at.
	Touch(ctx context.Context, id string, at time.Time) (bool, error)
}
