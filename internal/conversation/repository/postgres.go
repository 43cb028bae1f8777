package repository

import (
	"context"
	"database/sql"
	"errors"

	"chatdesk/backend/internal/conversation/domain"
	"chatdesk/backend/internal/db"
)

// PostgresRepository is the Postgres conversation repository.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a conversation repository backed by sqlDB.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

const conversationColumns = `id, business_id, customer_ref, mode, assigned_employee_id, assigned_at,
	ai_context, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var mode string
	var assignee sql.NullString
	var assignedAt sql.NullTime
	var aiContext []byte
	if err := row.Scan(&c.ID, &c.BusinessID, &c.CustomerRef, &mode, &assignee, &assignedAt,
		&aiContext, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Mode = domain.Mode(mode)
	c.AssignedEmployeeID = assignee.String
	if assignedAt.Valid {
		c.AssignedAt = &assignedAt.Time
	}
	c.AIContext = aiContext
	return &c, nil
}

// Get returns the conversation of the business, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, businessID, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1 AND business_id = $2`, id, businessID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// Apply runs the conditional update, the optional reset and the audit insert in one transaction.
// The update predicate repeats the tenant filter so a guessed id of another business never matches.
func (r *PostgresRepository) Apply(ctx context.Context, t Transition) (*domain.Conversation, error) {
	var out *domain.Conversation
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		out, err = scanConversation(tx.QueryRowContext(ctx, `UPDATE conversations SET
				mode = $4,
				assigned_employee_id = $5,
				assigned_at = $6,
				ai_context = CASE WHEN $8::boolean THEN '{}'::jsonb ELSE ai_context END,
				version = version + 1,
				updated_at = $7
			WHERE id = $1 AND business_id = $2 AND version = $3
			RETURNING `+conversationColumns,
			t.ConversationID, t.BusinessID, t.ExpectedVersion,
			string(t.Mode),
			sql.NullString{String: t.AssignedEmployeeID, Valid: t.AssignedEmployeeID != ""},
			nullTime(t),
			t.At, t.Reset,
		))
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND business_id = $2)`,
				t.ConversationID, t.BusinessID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrStale
			}
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if t.Reset {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM messages WHERE conversation_id = $1 AND business_id = $2`,
				t.ConversationID, t.BusinessID); err != nil {
				return err
			}
		}
		if t.Audit != nil {
			return insertMessage(ctx, tx, t.Audit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func nullTime(t Transition) sql.NullTime {
	if t.AssignedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t.AssignedAt, Valid: true}
}

// ListMessages returns messages of the conversation in the business, oldest first.
func (r *PostgresRepository) ListMessages(ctx context.Context, businessID, conversationID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, conversation_id, business_id, sender_type, sender_id, content, created_at
		FROM messages WHERE business_id = $1 AND conversation_id = $2
		ORDER BY created_at, id
		LIMIT $3`, businessID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		var m domain.Message
		var sender string
		var senderID sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.BusinessID, &sender, &senderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SenderType = domain.SenderType(sender)
		m.SenderID = senderID.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Create inserts c.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Conversation) error {
	var assignedAt sql.NullTime
	if c.AssignedAt != nil {
		assignedAt = sql.NullTime{Time: *c.AssignedAt, Valid: true}
	}
	aiContext := []byte(c.AIContext)
	if len(aiContext) == 0 {
		aiContext = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.BusinessID, c.CustomerRef, string(c.Mode),
		sql.NullString{String: c.AssignedEmployeeID, Valid: c.AssignedEmployeeID != ""},
		assignedAt, aiContext, c.Version, c.CreatedAt, c.UpdatedAt)
	return err
}

// AppendMessage inserts m.
func (r *PostgresRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO messages
		(id, conversation_id, business_id, sender_type, sender_id, content, created_at)
		SELECT $1, c.id, c.business_id, $4, $5, $6, $7
		FROM conversations c WHERE c.id = $2 AND c.business_id = $3`,
		m.ID, m.ConversationID, m.BusinessID, string(m.SenderType),
		sql.NullString{String: m.SenderID, Valid: m.SenderID != ""}, m.Content, m.CreatedAt)
	return err
}

func insertMessage(ctx context.Context, tx *sql.Tx, m *domain.Message) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO messages
		(id, conversation_id, business_id, sender_type, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ConversationID, m.BusinessID, string(m.SenderType),
		sql.NullString{String: m.SenderID, Valid: m.SenderID != ""}, m.Content, m.CreatedAt)
	return err
}
