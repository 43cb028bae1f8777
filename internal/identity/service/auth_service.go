// Package service authenticates operators with email and password and opens sessions for them.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"chatdesk/backend/internal/audit"
	employeedomain "chatdesk/backend/internal/employee/domain"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/platform/apperr"
	"chatdesk/backend/internal/security"
	sessiondomain "chatdesk/backend/internal/session/domain"
)

// EmployeeRepo is the minimal employee repository needed by the auth service.
type EmployeeRepo interface {
	GetByEmail(ctx context.Context, businessID, email string) (*employeedomain.Employee, error)
}

// SessionStore is the part of the session store the auth service drives.
type SessionStore interface {
	Create(ctx context.Context, emp *employeedomain.Employee, ip string) (string, *sessiondomain.Session, error)
	Revoke(ctx context.Context, caller guard.Context, sessionID string) error
}

// LoginResult is the outcome of a successful Login.
type LoginResult struct {
	Token      string
	SessionID  string
	EmployeeID string
	BusinessID string
	ExpiresAt  time.Time
}

// AuthService implements password login and logout.
type AuthService struct {
	employees EmployeeRepo
	sessions  SessionStore
	hasher    *security.Hasher
	audit     audit.AuditLogger
	timeout   time.Duration
}

// NewAuthService returns an AuthService. auditLogger may be nil.
func NewAuthService(employees EmployeeRepo, sessions SessionStore, hasher *security.Hasher, auditLogger audit.AuditLogger, timeout time.Duration) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &AuthService{employees: employees, sessions: sessions, hasher: hasher, audit: auditLogger, timeout: timeout}
}

// Login checks the operator's password and opens a session in businessID. Unknown email and
// wrong password are indistinguishable (Unauthenticated). A correct password on an unverified
// email is Forbidden.
func (s *AuthService) Login(ctx context.Context, businessID, email, password, ip string) (*LoginResult, error) {
	const op = "auth.login"
	businessID = strings.TrimSpace(businessID)
	email = strings.TrimSpace(strings.ToLower(email))
	if businessID == "" || email == "" || password == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, op, "invalid credentials")
	}

	lookupCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	emp, err := s.employees.GetByEmail(lookupCtx, businessID, email)
	if err != nil {
		return nil, apperr.FromStorageContext(lookupCtx, op, err)
	}
	hash := ""
	if emp != nil {
		hash = emp.PasswordHash
	}
	if err := s.hasher.Compare(hash, password); err != nil || emp == nil {
		s.audit.LogEvent(ctx, businessID, "", "login_failed", "session", email)
		return nil, apperr.New(apperr.KindUnauthenticated, op, "invalid credentials")
	}
	if !emp.EmailVerified {
		s.audit.LogEvent(ctx, businessID, emp.ID, "login_unverified", "session", "")
		return nil, apperr.New(apperr.KindForbidden, op, "email not verified")
	}

	token, sess, err := s.sessions.Create(ctx, emp, ip)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().
		Str("business_id", emp.BusinessID).
		Str("employee_id", emp.ID).
		Str("session_id", sess.ID).
		Msg("auth: login")
	s.audit.LogEvent(ctx, emp.BusinessID, emp.ID, "login", "session", sess.ID)
	return &LoginResult{
		Token:      token,
		SessionID:  sess.ID,
		EmployeeID: emp.ID,
		BusinessID: emp.BusinessID,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// Logout revokes the session the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, gctx guard.Context) error {
	if gctx.IsZero() {
		return apperr.New(apperr.KindUnauthenticated, "auth.logout", "request not resolved")
	}
	return s.sessions.Revoke(ctx, gctx, gctx.SessionID())
}
