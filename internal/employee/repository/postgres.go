package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"chatdesk/backend/internal/db"
	"chatdesk/backend/internal/employee/domain"
)

// PostgresRepository is the Postgres employee repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an employee repository backed by sqlDB.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

const employeeColumns = `id, business_id, role_id, email, name, password_hash, email_verified, created_at`

func scanEmployee(row *sql.Row) (*domain.Employee, error) {
	var e domain.Employee
	err := row.Scan(&e.ID, &e.BusinessID, &e.RoleID, &e.Email, &e.Name, &e.PasswordHash, &e.EmailVerified, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// GetByID returns the employee, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	return scanEmployee(r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

// GetByEmail returns the employee of the business with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, businessID, email string) (*domain.Employee, error) {
	return scanEmployee(r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE business_id = $1 AND lower(email) = lower($2)`,
		businessID, email))
}

// Create inserts e.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Employee) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.BusinessID, e.RoleID, e.Email, e.Name, e.PasswordHash, e.EmailVerified, e.CreatedAt)
	return err
}

// DeleteAndRelease runs the release, revocation and delete in one transaction.
func (r *PostgresRepository) DeleteAndRelease(ctx context.Context, rel Release) ([]string, bool, error) {
	var released []string
	found := false
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM employees WHERE id = $1 AND business_id = $2 FOR UPDATE`,
			rel.EmployeeID, rel.BusinessID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		rows, err := tx.QueryContext(ctx, `UPDATE conversations
			SET mode = 'ai', assigned_employee_id = NULL, assigned_at = NULL, version = version + 1, updated_at = $3
			WHERE business_id = $1 AND assigned_employee_id = $2
			RETURNING id`, rel.BusinessID, rel.EmployeeID, rel.At)
		if err != nil {
			return err
		}
		for rows.Next() {
			var convID string
			if err := rows.Scan(&convID); err != nil {
				rows.Close()
				return err
			}
			released = append(released, convID)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, convID := range released {
			if _, err := tx.ExecContext(ctx, `INSERT INTO messages
				(id, conversation_id, business_id, sender_type, sender_id, content, created_at)
				VALUES ($1, $2, $3, 'system', NULL, $4, $5)`,
				uuid.New().String(), convID, rel.BusinessID, rel.Message, rel.At); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET revoked_at = $2 WHERE employee_id = $1 AND revoked_at IS NULL`,
			rel.EmployeeID, rel.At); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM employees WHERE id = $1 AND business_id = $2`, rel.EmployeeID, rel.BusinessID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return released, found, nil
}
