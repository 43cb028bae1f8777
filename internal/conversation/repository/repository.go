package repository

import (
	"context"
	"errors"
	"time"

	"chatdesk/backend/internal/conversation/domain"
)

var (
	// ErrNotFound is returned by Apply when no conversation with that id exists in the business.
	ErrNotFound = errors.New("conversation not found")
	// ErrStale is returned by Apply when the conversation exists but its version moved on.
	ErrStale = errors.New("conversation version changed")
)

// Transition is one compare-and-set mutation of a conversation plus its audit message.
type Transition struct {
	BusinessID      string
	ConversationID  string
	ExpectedVersion int64

	Mode               domain.Mode
	AssignedEmployeeID string
	AssignedAt         *time.Time
	// Reset deletes every message of the conversation and empties ai_context before Audit is inserted.
	Reset bool
	// Audit, when set, is inserted in the same unit of work. If the insert fails nothing is applied.
	Audit *domain.Message
	At    time.Time
}

// Repository defines tenant-scoped persistence for conversations and messages. Every method
// takes the business id and filters by it.
type Repository interface {
	// Get returns the conversation, or (nil, nil) when absent or owned by another business.
	Get(ctx context.Context, businessID, id string) (*domain.Conversation, error)
	// Apply performs t atomically and returns the updated conversation. It fails with ErrStale
	// when the stored version differs from t.ExpectedVersion and ErrNotFound when the row is
	// absent in t.BusinessID.
	Apply(ctx context.Context, t Transition) (*domain.Conversation, error)
	// ListMessages returns up to limit messages of the conversation, oldest first.
	ListMessages(ctx context.Context, businessID, conversationID string, limit int) ([]*domain.Message, error)
	Create(ctx context.Context, c *domain.Conversation) error
	AppendMessage(ctx context.Context, m *domain.Message) error
}
