package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"chatdesk/backend/internal/db"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/role/domain"
)

// PostgresRepository is the Postgres role repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a role repository backed by sqlDB.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// GrantsForRole loads grants with the role scope enforced in SQL. Rows that do not parse as a
// known (resource, action) pair are skipped and logged, never widened.
func (r *PostgresRepository) GrantsForRole(ctx context.Context, businessID, roleID string) ([]permission.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT g.resource, g.action
		FROM role_grants g
		JOIN roles r ON r.id = g.role_id
		WHERE g.role_id = $1 AND (r.business_id IS NULL OR r.business_id = $2)`,
		roleID, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.Grant
	for rows.Next() {
		var resource, action string
		if err := rows.Scan(&resource, &action); err != nil {
			return nil, err
		}
		g, err := permission.ParseGrant(resource, action)
		if err != nil {
			log.Warn().Err(err).Str("role_id", roleID).Msg("skipping unknown role grant")
			continue
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Create inserts the role and its grants in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, role *domain.Role) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var businessID sql.NullString
		if !role.Global() {
			businessID = sql.NullString{String: role.BusinessID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roles (id, business_id, name, created_at) VALUES ($1, $2, $3, $4)`,
			role.ID, businessID, role.Name, role.CreatedAt); err != nil {
			return err
		}
		for _, g := range role.Grants {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO role_grants (role_id, resource, action) VALUES ($1, $2, $3)`,
				role.ID, string(g.Resource), string(g.Action)); err != nil {
				return err
			}
		}
		return nil
	})
}
