package repository

import (
	"context"
	"database/sql"
	"errors"

	"chatdesk/backend/internal/business/domain"
)

// PostgresRepository is the Postgres business repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a business repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectBusiness = `SELECT id, name, branding, ai_settings, subscription_status, created_at, updated_at
FROM businesses WHERE id = $1`

// GetByID returns the business, or nil if it does not exist.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	var b domain.Business
	var branding, ai []byte
	err := r.db.QueryRowContext(ctx, selectBusiness, id).Scan(
		&b.ID, &b.Name, &branding, &ai, &b.SubscriptionStatus, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.Branding = branding
	b.AISettings = ai
	return &b, nil
}

// Create inserts b. Empty JSON settings are stored as '{}'.
func (r *PostgresRepository) Create(ctx context.Context, b *domain.Business) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO businesses
		(id, name, branding, ai_settings, subscription_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		b.ID, b.Name, jsonOrEmpty(b.Branding), jsonOrEmpty(b.AISettings), b.SubscriptionStatus, b.CreatedAt,
	)
	return err
}

// GetCredential returns the named credential of the business, or nil if none is set.
func (r *PostgresRepository) GetCredential(ctx context.Context, businessID, name string) (*domain.Credential, error) {
	c := domain.Credential{BusinessID: businessID, Name: name}
	err := r.db.QueryRowContext(ctx,
		`SELECT envelope, updated_at FROM business_credentials WHERE business_id = $1 AND name = $2`,
		businessID, name,
	).Scan(&c.Envelope, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpsertCredential stores or replaces the credential envelope.
func (r *PostgresRepository) UpsertCredential(ctx context.Context, c *domain.Credential) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO business_credentials (business_id, name, envelope, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (business_id, name) DO UPDATE SET envelope = EXCLUDED.envelope, updated_at = EXCLUDED.updated_at`,
		c.BusinessID, c.Name, c.Envelope, c.UpdatedAt,
	)
	return err
}

// DeleteCredential removes the credential. Returns false if it did not exist.
func (r *PostgresRepository) DeleteCredential(ctx context.Context, businessID, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM business_credentials WHERE business_id = $1 AND name = $2`, businessID, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func jsonOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
