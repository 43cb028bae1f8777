// Package handoff moves conversations between AI, human and hybrid control. Every transition is
// authorized against the caller's grants, scoped to the caller's business and applied with a
// compare-and-set on the conversation version, together with its system message.
package handoff

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"chatdesk/backend/internal/conversation/domain"
	"chatdesk/backend/internal/conversation/repository"
	"chatdesk/backend/internal/events"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
)

const instrumentationName = "chatdesk/backend/internal/conversation/handoff"

// maxAttempts bounds how often a transition re-reads after losing a compare-and-set.
const maxAttempts = 3

// DefaultMessageLimit caps ListMessages when the caller passes no limit.
const DefaultMessageLimit = 200

// Machine is the conversation handoff state machine.
type Machine struct {
	repo      repository.Repository
	authz     guard.Authorizer
	publisher events.Publisher
	timeout   time.Duration
	now       func() time.Time
	newID     func() string

	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// Option configures a Machine.
type Option func(*Machine)

// WithTimeout bounds the storage work of one operation.
func WithTimeout(d time.Duration) Option { return func(m *Machine) { m.timeout = d } }

// WithPublisher sets where committed transitions are announced.
func WithPublisher(p events.Publisher) Option { return func(m *Machine) { m.publisher = p } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

// New returns a Machine over repo. authz is normally the request guard.
func New(repo repository.Repository, authz guard.Authorizer, opts ...Option) *Machine {
	m := &Machine{
		repo:      repo,
		authz:     authz,
		publisher: events.Noop{},
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(m)
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter("chatdesk.handoff.transitions",
		metric.WithDescription("Conversation handoff transitions by outcome"))
	if err != nil {
		otel.Handle(err)
	}
	m.transitions = counter
	return m
}

// decision is what a transition does to a loaded conversation. A nil transition is a no-op.
type decision func(c *domain.Conversation, gctx guard.Context, now time.Time) (*repository.Transition, error)

// Takeover puts the caller in control: the conversation becomes human and assigned to them.
// Taking over a conversation the caller already holds changes nothing. A conversation held by
// another operator yields Conflict.
func (m *Machine) Takeover(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error) {
	return guard.Within(ctx, m.authz, gctx, permission.ConversationsTakeover,
		func(ctx context.Context, gctx guard.Context) (*domain.Conversation, error) {
			return m.run(ctx, gctx, conversationID, "takeover", events.TypeTakenOver, m.decideTakeover)
		})
}

// GiveBackToAI hands a human or hybrid conversation back to AI. On an AI conversation it is a no-op.
func (m *Machine) GiveBackToAI(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error) {
	return guard.Within(ctx, m.authz, gctx, permission.ConversationsTakeover,
		func(ctx context.Context, gctx guard.Context) (*domain.Conversation, error) {
			return m.run(ctx, gctx, conversationID, "give_back", events.TypeHandedBack, m.decideGiveBack)
		})
}

// Clear deletes the message history, empties the AI context and resets the conversation to AI.
// A system message is left only when the mode actually changed.
func (m *Machine) Clear(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error) {
	return guard.Within(ctx, m.authz, gctx, permission.ConversationsDelete,
		func(ctx context.Context, gctx guard.Context) (*domain.Conversation, error) {
			return m.run(ctx, gctx, conversationID, "clear", events.TypeCleared, m.decideClear)
		})
}

// Get returns a conversation of the caller's business.
func (m *Machine) Get(ctx context.Context, gctx guard.Context, conversationID string) (*domain.Conversation, error) {
	return guard.Within(ctx, m.authz, gctx, permission.ConversationsRead,
		func(ctx context.Context, gctx guard.Context) (*domain.Conversation, error) {
			ctx, cancel := m.bound(ctx)
			defer cancel()
			return m.load(ctx, gctx, "handoff.get", conversationID)
		})
}

// ListMessages returns up to limit messages of a conversation of the caller's business, oldest first.
func (m *Machine) ListMessages(ctx context.Context, gctx guard.Context, conversationID string, limit int) ([]*domain.Message, error) {
	return guard.Within(ctx, m.authz, gctx, permission.MessagesRead,
		func(ctx context.Context, gctx guard.Context) ([]*domain.Message, error) {
			const op = "handoff.list_messages"
			ctx, cancel := m.bound(ctx)
			defer cancel()
			if _, err := m.load(ctx, gctx, op, conversationID); err != nil {
				return nil, err
			}
			if limit <= 0 || limit > DefaultMessageLimit {
				limit = DefaultMessageLimit
			}
			msgs, err := m.repo.ListMessages(ctx, gctx.BusinessID(), conversationID, limit)
			if err != nil {
				return nil, apperr.FromStorageContext(ctx, op, err)
			}
			return msgs, nil
		})
}

func (m *Machine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *Machine) load(ctx context.Context, gctx guard.Context, op, conversationID string) (*domain.Conversation, error) {
	if conversationID == "" {
		return nil, apperr.New(apperr.KindNotFound, op, "conversation not found")
	}
	c, err := m.repo.Get(ctx, gctx.BusinessID(), conversationID)
	if err != nil {
		return nil, apperr.FromStorageContext(ctx, op, err)
	}
	if c == nil {
		return nil, apperr.New(apperr.KindNotFound, op, "conversation not found")
	}
	return c, nil
}

func (m *Machine) run(ctx context.Context, gctx guard.Context, conversationID, name string, typ events.Type, decide decision) (*domain.Conversation, error) {
	op := "handoff." + name
	ctx, span := m.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("business_id", gctx.BusinessID()),
		attribute.String("conversation_id", conversationID),
	))
	defer span.End()

	c, outcome, err := m.apply(ctx, gctx, op, conversationID, typ, decide)
	if err != nil {
		outcome = apperr.KindOf(err).String()
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("transition", name),
			attribute.String("outcome", outcome),
		))
	}
	return c, err
}

func (m *Machine) apply(ctx context.Context, gctx guard.Context, op, conversationID string, typ events.Type, decide decision) (*domain.Conversation, string, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	for attempt := 1; ; attempt++ {
		current, err := m.load(ctx, gctx, op, conversationID)
		if err != nil {
			return nil, "", err
		}
		now := m.now().UTC()
		t, err := decide(current, gctx, now)
		if err != nil {
			return nil, "", err
		}
		if t == nil {
			return current, "noop", nil
		}
		t.BusinessID = gctx.BusinessID()
		t.ConversationID = current.ID
		t.ExpectedVersion = current.Version
		t.At = now
		if t.Audit != nil {
			t.Audit.ID = m.newID()
			t.Audit.ConversationID = current.ID
			t.Audit.BusinessID = gctx.BusinessID()
			t.Audit.SenderType = domain.SenderSystem
			t.Audit.SenderID = gctx.EmployeeID()
			t.Audit.CreatedAt = now
		}

		updated, err := m.repo.Apply(ctx, *t)
		switch {
		case errors.Is(err, repository.ErrStale):
			if attempt < maxAttempts {
				log.Ctx(ctx).Debug().
					Str("conversation_id", conversationID).
					Int("attempt", attempt).
					Msg("handoff: lost compare-and-set, retrying")
				continue
			}
			return nil, "", apperr.New(apperr.KindConflict, op, "conversation changed concurrently")
		case errors.Is(err, repository.ErrNotFound):
			return nil, "", apperr.New(apperr.KindNotFound, op, "conversation not found")
		case err != nil:
			return nil, "", apperr.FromStorageContext(ctx, op, err)
		}

		log.Ctx(ctx).Info().
			Str("business_id", gctx.BusinessID()).
			Str("conversation_id", updated.ID).
			Str("employee_id", gctx.EmployeeID()).
			Str("from_mode", string(current.Mode)).
			Str("to_mode", string(updated.Mode)).
			Int64("version", updated.Version).
			Msg("handoff: " + string(typ))
		events.PublishAsync(ctx, m.publisher, events.Event{
			Type:           typ,
			BusinessID:     updated.BusinessID,
			ConversationID: updated.ID,
			EmployeeID:     gctx.EmployeeID(),
			FromMode:       string(current.Mode),
			ToMode:         string(updated.Mode),
			Version:        updated.Version,
			OccurredAt:     now,
		})
		return updated, "applied", nil
	}
}

func (m *Machine) decideTakeover(c *domain.Conversation, gctx guard.Context, now time.Time) (*repository.Transition, error) {
	if c.AssignedTo(gctx.EmployeeID()) && c.Mode == domain.ModeHuman {
		return nil, nil
	}
	if c.Mode == domain.ModeHuman {
		return nil, apperr.New(apperr.KindConflict, "handoff.takeover", "conversation is held by another operator")
	}
	at := now
	return &repository.Transition{
		Mode:               domain.ModeHuman,
		AssignedEmployeeID: gctx.EmployeeID(),
		AssignedAt:         &at,
		Audit:              &domain.Message{Content: domain.JoinedText(gctx.EmployeeName())},
	}, nil
}

func (m *Machine) decideGiveBack(c *domain.Conversation, gctx guard.Context, _ time.Time) (*repository.Transition, error) {
	if c.Mode == domain.ModeAI {
		return nil, nil
	}
	return &repository.Transition{
		Mode:  domain.ModeAI,
		Audit: &domain.Message{Content: domain.HandedBackText(gctx.EmployeeName())},
	}, nil
}

func (m *Machine) decideClear(c *domain.Conversation, gctx guard.Context, _ time.Time) (*repository.Transition, error) {
	t := &repository.Transition{Mode: domain.ModeAI, Reset: true}
	if c.Mode != domain.ModeAI {
		t.Audit = &domain.Message{Content: domain.ClearedText(gctx.EmployeeName())}
	}
	return t, nil
}
