package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"chatdesk/backend/internal/conversation/domain"
)

// MemoryRepository is an in-memory Repository with the same compare-and-set and atomicity
// semantics as the Postgres one. Used by tests and local tooling.
type MemoryRepository struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	messages      map[string][]*domain.Message

	// FailAudit, when set, makes Apply fail on the audit insert; nothing is applied.
	FailAudit error
	// Delay makes every call wait this long or until ctx is done.
	Delay time.Duration
	// BeforeApply, when set, is called before Apply takes the lock.
	BeforeApply func()
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		conversations: map[string]*domain.Conversation{},
		messages:      map[string][]*domain.Message{},
	}
}

func (r *MemoryRepository) wait(ctx context.Context) error {
	if r.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	cp := *c
	if c.AssignedAt != nil {
		at := *c.AssignedAt
		cp.AssignedAt = &at
	}
	cp.AIContext = append([]byte(nil), c.AIContext...)
	return &cp
}

// Get returns a copy of the conversation, or nil when absent or owned by another business.
func (r *MemoryRepository) Get(ctx context.Context, businessID, id string) (*domain.Conversation, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok || c.BusinessID != businessID {
		return nil, nil
	}
	return cloneConversation(c), nil
}

// Apply performs t under the lock. A failing audit insert leaves the conversation untouched.
func (r *MemoryRepository) Apply(ctx context.Context, t Transition) (*domain.Conversation, error) {
	if r.BeforeApply != nil {
		r.BeforeApply()
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[t.ConversationID]
	if !ok || c.BusinessID != t.BusinessID {
		return nil, ErrNotFound
	}
	if c.Version != t.ExpectedVersion {
		return nil, ErrStale
	}
	if t.Audit != nil && r.FailAudit != nil {
		return nil, r.FailAudit
	}

	next := cloneConversation(c)
	next.Mode = t.Mode
	next.AssignedEmployeeID = t.AssignedEmployeeID
	next.AssignedAt = t.AssignedAt
	next.Version++
	next.UpdatedAt = t.At
	if err := next.Validate(); err != nil {
		return nil, errors.Join(errors.New("conversations_mode_assignment_chk"), err)
	}
	if t.Reset {
		next.AIContext = []byte("{}")
		delete(r.messages, t.ConversationID)
	}
	if t.Audit != nil {
		m := *t.Audit
		r.messages[t.ConversationID] = append(r.messages[t.ConversationID], &m)
	}
	r.conversations[t.ConversationID] = next
	return cloneConversation(next), nil
}

// ListMessages returns up to limit messages, oldest first.
func (r *MemoryRepository) ListMessages(ctx context.Context, businessID, conversationID string, limit int) ([]*domain.Message, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages[conversationID] {
		if m.BusinessID != businessID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Create stores a copy of c.
func (r *MemoryRepository) Create(ctx context.Context, c *domain.Conversation) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[c.ID] = cloneConversation(c)
	return nil
}

// AppendMessage stores a copy of m when its conversation belongs to m.BusinessID.
func (r *MemoryRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[m.ConversationID]
	if !ok || c.BusinessID != m.BusinessID {
		return ErrNotFound
	}
	cp := *m
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], &cp)
	return nil
}

// ReleaseEmployee hands every conversation assigned to employeeID back to AI with one system
// message each and returns their ids. It mirrors the employee deletion transaction.
func (r *MemoryRepository) ReleaseEmployee(businessID, employeeID, message string, at time.Time, newID func() string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released []string
	for id, c := range r.conversations {
		if c.BusinessID != businessID || c.AssignedEmployeeID != employeeID {
			continue
		}
		next := cloneConversation(c)
		next.Mode = domain.ModeAI
		next.AssignedEmployeeID = ""
		next.AssignedAt = nil
		next.Version++
		next.UpdatedAt = at
		r.conversations[id] = next
		r.messages[id] = append(r.messages[id], &domain.Message{
			ID: newID(), ConversationID: id, BusinessID: businessID,
			SenderType: domain.SenderSystem, Content: message, CreatedAt: at,
		})
		released = append(released, id)
	}
	sort.Strings(released)
	return released
}
