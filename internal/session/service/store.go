// Package service issues, validates, refreshes and revokes operator sessions.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chatdesk/backend/internal/audit"
	employeedomain "chatdesk/backend/internal/employee/domain"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/platform/apperr"
	"chatdesk/backend/internal/security"
	"chatdesk/backend/internal/session/domain"
	"chatdesk/backend/internal/session/repository"
)

// Store is the session store. TTL is configuration passed in at construction.
type Store struct {
	repo    repository.Repository
	tokens  *security.TokenProvider
	ttl     time.Duration
	timeout time.Duration
	audit   audit.AuditLogger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds each storage call made by the store.
func WithTimeout(d time.Duration) Option { return func(s *Store) { s.timeout = d } }

// WithAuditLogger records revocations.
func WithAuditLogger(l audit.AuditLogger) Option { return func(s *Store) { s.audit = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// NewStore returns a Store issuing sessions that live for ttl.
func NewStore(repo repository.Repository, tokens *security.TokenProvider, ttl time.Duration, opts ...Option) *Store {
	s := &Store{repo: repo, tokens: tokens, ttl: ttl, audit: audit.Nop{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Create opens a session for the employee and returns its bearer token. Only the token hash is stored.
func (s *Store) Create(ctx context.Context, emp *employeedomain.Employee, ip string) (string, *domain.Session, error) {
	const op = "session.create"
	ctx, cancel := s.bound(ctx)
	defer cancel()

	now := s.now().UTC()
	sess := &domain.Session{
		ID:             uuid.New().String(),
		EmployeeID:     emp.ID,
		BusinessID:     emp.BusinessID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.ttl),
		IPAddress:      ip,
	}
	token, _, err := s.tokens.IssueSession(sess.ID, emp.ID, emp.BusinessID, now, sess.ExpiresAt)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	sess.TokenHash = security.HashToken(token)
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", nil, apperr.FromStorageContext(ctx, op, err)
	}
	return token, sess, nil
}

// Lookup returns the usable session behind token. Bad signature, unknown session, hash mismatch,
// revocation and expiry are all Unauthenticated.
func (s *Store) Lookup(ctx context.Context, token string) (*domain.Session, error) {
	const op = "session.lookup"
	claims, err := s.tokens.ValidateSession(token)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthenticated, op, "invalid session token")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sess, err := s.repo.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, apperr.FromStorageContext(ctx, op, err)
	}
	if sess == nil || !security.TokenHashEqual(token, sess.TokenHash) {
		return nil, apperr.New(apperr.KindUnauthenticated, op, "session not found")
	}
	if !sess.Usable(s.now()) {
		return nil, apperr.New(apperr.KindUnauthenticated, op, "session expired or revoked")
	}
	return sess, nil
}

// Revoke revokes sessionID on behalf of caller. Only the owning operator may revoke a session:
// another operator's session in the same business is Forbidden, while an absent session or one
// of another business is NotFound. Revoking an already revoked session succeeds.
func (s *Store) Revoke(ctx context.Context, caller guard.Context, sessionID string) error {
	const op = "session.revoke"
	if caller.IsZero() {
		return apperr.New(apperr.KindUnauthenticated, op, "request not resolved")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return apperr.FromStorageContext(ctx, op, err)
	}
	if sess == nil || sess.BusinessID != caller.BusinessID() {
		return apperr.New(apperr.KindNotFound, op, "session not found")
	}
	if sess.EmployeeID != caller.EmployeeID() {
		s.audit.LogEvent(ctx, caller.BusinessID(), caller.EmployeeID(), "revoke_denied", "session", sessionID)
		return apperr.New(apperr.KindForbidden, op, "cannot revoke another operator's session")
	}
	if _, err := s.repo.Revoke(ctx, sessionID, s.now().UTC()); err != nil {
		return apperr.FromStorageContext(ctx, op, err)
	}
	s.audit.LogEvent(ctx, caller.BusinessID(), caller.EmployeeID(), "revoke", "session", sessionID)
	return nil
}

// RevokeAllForEmployee revokes every live session of the caller and returns how many were revoked.
func (s *Store) RevokeAllForEmployee(ctx context.Context, caller guard.Context) (int64, error) {
	const op = "session.revoke_all"
	if caller.IsZero() {
		return 0, apperr.New(apperr.KindUnauthenticated, op, "request not resolved")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.repo.RevokeAllForEmployee(ctx, caller.EmployeeID(), s.now().UTC())
	if err != nil {
		return 0, apperr.FromStorageContext(ctx, op, err)
	}
	s.audit.LogEvent(ctx, caller.BusinessID(), caller.EmployeeID(), "revoke_all", "session", "")
	return n, nil
}

// Touch records activity on the session. It never moves expires_at. A revoked or expired
// session is Unauthenticated.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	const op = "session.touch"
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ok, err := s.repo.Touch(ctx, sessionID, s.now().UTC())
	if err != nil {
		return apperr.FromStorageContext(ctx, op, err)
	}
	if !ok {
		return apperr.New(apperr.KindUnauthenticated, op, "session expired or revoked")
	}
	log.Ctx(ctx).Debug().Str("session_id", sessionID).Msg("session touched")
	return nil
}
