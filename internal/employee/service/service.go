// Package service implements the operator lifecycle of a business.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"chatdesk/backend/internal/audit"
	conversationdomain "chatdesk/backend/internal/conversation/domain"
	"chatdesk/backend/internal/employee/repository"
	"chatdesk/backend/internal/events"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
)

// Service removes operators without orphaning the conversations they held.
type Service struct {
	repo      repository.Repository
	authz     guard.Authorizer
	publisher events.Publisher
	audit     audit.AuditLogger
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds the storage work of one operation.
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// WithPublisher announces conversations released by a deletion.
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithAuditLogger records deletions.
func WithAuditLogger(l audit.AuditLogger) Option { return func(s *Service) { s.audit = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New returns an employee Service.
func New(repo repository.Repository, authz guard.Authorizer, opts ...Option) *Service {
	s := &Service{repo: repo, authz: authz, publisher: events.Noop{}, audit: audit.Nop{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delete removes an operator of the caller's business. Every conversation assigned to them is
// handed back to AI with one system message, their sessions are revoked and the operator row is
// deleted, all in one transaction. It returns the ids of the released conversations.
// Callers cannot delete themselves.
func (s *Service) Delete(ctx context.Context, gctx guard.Context, employeeID string) ([]string, error) {
	return guard.Within(ctx, s.authz, gctx, permission.EmployeesDelete,
		func(ctx context.Context, gctx guard.Context) ([]string, error) {
			const op = "employee.delete"
			if employeeID == gctx.EmployeeID() {
				return nil, apperr.New(apperr.KindForbidden, op, "cannot delete yourself")
			}
			if s.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}

			target, err := s.repo.GetByID(ctx, employeeID)
			if err != nil {
				return nil, apperr.FromStorageContext(ctx, op, err)
			}
			if target == nil || target.BusinessID != gctx.BusinessID() {
				return nil, apperr.New(apperr.KindNotFound, op, "employee not found")
			}

			at := s.now().UTC()
			released, found, err := s.repo.DeleteAndRelease(ctx, repository.Release{
				BusinessID: gctx.BusinessID(),
				EmployeeID: employeeID,
				At:         at,
				Message:    conversationdomain.RemovedText(target.DisplayName()),
			})
			if err != nil {
				return nil, apperr.FromStorageContext(ctx, op, err)
			}
			if !found {
				return nil, apperr.New(apperr.KindNotFound, op, "employee not found")
			}

			log.Ctx(ctx).Info().
				Str("business_id", gctx.BusinessID()).
				Str("employee_id", employeeID).
				Int("released", len(released)).
				Msg("employee: deleted")
			s.audit.LogEvent(ctx, gctx.BusinessID(), gctx.EmployeeID(), "employee_delete", "employee", employeeID)
			for _, id := range released {
				events.PublishAsync(ctx, s.publisher, events.Event{
					Type:           events.TypeReleasedOnDelete,
					BusinessID:     gctx.BusinessID(),
					ConversationID: id,
					EmployeeID:     employeeID,
					ToMode:         string(conversationdomain.ModeAI),
					OccurredAt:     at,
				})
			}
			return released, nil
		})
}
