package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chatdesk/backend/internal/session/domain"
)

// PostgresRepository is the Postgres session repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	var revokedAt sql.NullTime
	var ip sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT id, employee_id, business_id, token_hash, created_at,
		last_activity_at, expires_at, revoked_at, ip_address
		FROM sessions WHERE id = $1`, id).Scan(
		&s.ID, &s.EmployeeID, &s.BusinessID, &s.TokenHash, &s.CreatedAt,
		&s.LastActivityAt, &s.ExpiresAt, &revokedAt, &ip,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		s.RevokedAt = &revokedAt.Time
	}
	s.IPAddress = ip.String
	return &s, nil
}

// Create persists s. The session must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions
		(id, employee_id, business_id, token_hash, created_at, last_activity_at, expires_at, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.EmployeeID, s.BusinessID, s.TokenHash, s.CreatedAt, s.LastActivityAt, s.ExpiresAt,
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
	)
	return err
}

// Revoke marks the session revoked unless it already is.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	return affected(r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at))
}

// RevokeAllForEmployee revokes all live sessions of the employee.
func (r *PostgresRepository) RevokeAllForEmployee(ctx context.Context, employeeID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE employee_id = $1 AND revoked_at IS NULL`, employeeID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Touch records activity on a usable session.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	return affected(r.db.ExecContext(ctx, `UPDATE sessions SET last_activity_at = $2
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2`, id, at))
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
