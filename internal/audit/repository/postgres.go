package repository

import (
	"context"
	"database/sql"

	"chatdesk/backend/internal/audit/domain"
)

// PostgresRepository is the Postgres audit log repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_logs
		(id, business_id, employee_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.BusinessID,
		sql.NullString{String: a.EmployeeID, Valid: a.EmployeeID != ""},
		a.Action, a.Resource, a.IP,
		sql.NullString{String: a.Metadata, Valid: a.Metadata != ""},
		a.CreatedAt,
	)
	return err
}

// ListByBusiness returns audit logs of the business, newest first.
func (r *PostgresRepository) ListByBusiness(ctx context.Context, businessID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, business_id, employee_id, action, resource, ip, metadata, created_at
		FROM audit_logs WHERE business_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, businessID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		var employeeID, metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.BusinessID, &employeeID, &a.Action, &a.Resource, &a.IP, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.EmployeeID = employeeID.String
		a.Metadata = metadata.String
		out = append(out, &a)
	}
	return out, rows.Err()
}
