package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chatdesk/backend/internal/audit/domain"
	auditrepo "chatdesk/backend/internal/audit/repository"
)

// SystemBusinessID is recorded for events that have no resolved business (e.g. a failed login).
const SystemBusinessID = "_system"

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are logged
// and never affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, businessID, employeeID, action, resource, metadata string)
}

// Logger implements AuditLogger over the audit repository.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	now         func() time.Time
}

// NewLogger returns a Logger that persists to repo. ipExtractor may be nil; IP is then "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, now: time.Now}
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, businessID, employeeID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	if businessID == "" {
		businessID = SystemBusinessID
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		BusinessID: businessID,
		EmployeeID: employeeID,
		Action:     action,
		Resource:   resource,
		IP:         ip,
		Metadata:   metadata,
		CreatedAt:  l.now().UTC(),
	}
	// Audit writes must not be cut short by a request that already finished.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("business_id", businessID).
			Str("action", action).
			Str("resource", resource).
			Msg("audit: failed to log event")
	}
}

// Nop is an AuditLogger that records nothing.
type Nop struct{}

// LogEvent does nothing.
func (Nop) LogEvent(context.Context, string, string, string, string, string) {}
