package repository

import (
	"context"
	"time"

	"chatdesk/backend/internal/employee/domain"
)

// Release describes how a removed employee's conversations are handed back to AI.
type Release struct {
	BusinessID string
	EmployeeID string
	At         time.Time
	// Message is the system message content inserted once per released conversation.
	Message string
}

// Repository defines persistence for employees. Lookups return (nil, nil) when absent.
type Repository interface {
	// GetByID is the only unscoped lookup; the guard uses it to resolve the tenant.
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, businessID, email string) (*domain.Employee, error)
	Create(ctx context.Context, e *domain.Employee) error
	// DeleteAndRelease atomically hands every conversation assigned to the employee back to AI,
	// revokes the employee's sessions and deletes the employee. found is false when no employee
	// with that id exists in the business; nothing is changed in that case.
	DeleteAndRelease(ctx context.Context, r Release) (released []string, found bool, err error)
}
