package repository

import (
	"context"

	"chatdesk/backend/internal/business/domain"
)

// Repository defines persistence for businesses and their encrypted credentials.
// Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	Create(ctx context.Context, b *domain.Business) error
	GetCredential(ctx context.Context, businessID, name string) (*domain.Credential, error)
	UpsertCredential(ctx context.Context, c *domain.Credential) error
	DeleteCredential(ctx context.Context, businessID, name string) (bool, error)
}
