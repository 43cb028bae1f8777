// Package guard is the single choke point for tenant-scoped operations: it resolves a session
// token to exactly one business and one operator, and authorizes (resource, action) pairs
// against the operator's role grants. It never mutates session or role state.
package guard

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	businessdomain "chatdesk/backend/internal/business/domain"
	employeedomain "chatdesk/backend/internal/employee/domain"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
	sessiondomain "chatdesk/backend/internal/session/domain"
)

const instrumentationName = "chatdesk/backend/internal/guard"

// SessionLookup resolves a bearer token to a usable session. Implementations return an
// apperr.KindUnauthenticated error for missing, revoked or expired sessions.
type SessionLookup interface {
	Lookup(ctx context.Context, token string) (*sessiondomain.Session, error)
}

// EmployeeStore loads operators. GetByID returns (nil, nil) when absent.
type EmployeeStore interface {
	GetByID(ctx context.Context, id string) (*employeedomain.Employee, error)
}

// BusinessStore loads tenants. GetByID returns (nil, nil) when absent.
type BusinessStore interface {
	GetByID(ctx context.Context, id string) (*businessdomain.Business, error)
}

// GrantStore loads the grants of a role scoped to a business or global.
type GrantStore interface {
	GrantsForRole(ctx context.Context, businessID, roleID string) ([]permission.Grant, error)
}

// Authorizer decides whether a resolved Context holds a grant.
type Authorizer interface {
	Authorize(ctx context.Context, gctx Context, want permission.Grant) error
}

// Guard resolves and authorizes requests. Every call re-reads storage; nothing is cached
// across requests.
type Guard struct {
	sessions   SessionLookup
	employees  EmployeeStore
	businesses BusinessStore
	grants     GrantStore
	evaluator  permission.Evaluator
	timeout    time.Duration

	tracer    trace.Tracer
	decisions metric.Int64Counter
}

// New returns a Guard. timeout bounds the storage lookups of one Resolve; zero means unbounded.
func New(sessions SessionLookup, employees EmployeeStore, businesses BusinessStore, grants GrantStore, evaluator permission.Evaluator, timeout time.Duration) *Guard {
	meter := otel.Meter(instrumentationName)
	decisions, err := meter.Int64Counter("chatdesk.guard.decisions",
		metric.WithDescription("Guard resolve and authorize outcomes"))
	if err != nil {
		otel.Handle(err)
	}
	return &Guard{
		sessions:   sessions,
		employees:  employees,
		businesses: businesses,
		grants:     grants,
		evaluator:  evaluator,
		timeout:    timeout,
		tracer:     otel.Tracer(instrumentationName),
		decisions:  decisions,
	}
}

// Resolve maps a session token to a Context. Any missing, revoked or expired session, missing
// operator, or operator whose business differs from the session's yields Unauthenticated.
// Storage calls exceeding the guard timeout yield Timeout; other storage failures yield Internal.
func (g *Guard) Resolve(ctx context.Context, token string) (Context, error) {
	ctx, span := g.tracer.Start(ctx, "guard.Resolve")
	defer span.End()

	gctx, err := g.resolve(ctx, token)
	g.record(ctx, "resolve", err)
	if err != nil {
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
		return Context{}, err
	}
	span.SetAttributes(
		attribute.String("business_id", gctx.BusinessID()),
		attribute.String("employee_id", gctx.EmployeeID()),
	)
	return gctx, nil
}

func (g *Guard) resolve(ctx context.Context, token string) (Context, error) {
	const op = "guard.resolve"
	if token == "" {
		return Context{}, apperr.New(apperr.KindUnauthenticated, op, "session token required")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	sess, err := g.sessions.Lookup(ctx, token)
	if err != nil {
		return Context{}, apperr.FromStorageContext(ctx, op, err)
	}
	if sess == nil {
		return Context{}, apperr.New(apperr.KindUnauthenticated, op, "session not found")
	}

	emp, err := g.employees.GetByID(ctx, sess.EmployeeID)
	if err != nil {
		return Context{}, apperr.FromStorageContext(ctx, op, err)
	}
	if emp == nil || emp.BusinessID != sess.BusinessID {
		return Context{}, apperr.New(apperr.KindUnauthenticated, op, "operator no longer exists")
	}

	biz, err := g.businesses.GetByID(ctx, emp.BusinessID)
	if err != nil {
		return Context{}, apperr.FromStorageContext(ctx, op, err)
	}
	if biz == nil {
		return Context{}, apperr.New(apperr.KindUnauthenticated, op, "business no longer exists")
	}

	grants, err := g.grants.GrantsForRole(ctx, biz.ID, emp.RoleID)
	if err != nil {
		return Context{}, apperr.FromStorageContext(ctx, op, err)
	}

	employee := *emp
	employee.PasswordHash = ""
	return Context{
		business:  *biz,
		employee:  employee,
		sessionID: sess.ID,
		grants:    permission.NewSet(grants...),
	}, nil
}

// Authorize returns nil when gctx holds want, and Forbidden otherwise. Absence of a grant is
// a denial, not an error. An evaluator failure also denies.
func (g *Guard) Authorize(ctx context.Context, gctx Context, want permission.Grant) error {
	const op = "guard.authorize"
	if gctx.IsZero() {
		err := apperr.New(apperr.KindUnauthenticated, op, "request not resolved")
		g.record(ctx, "authorize", err)
		return err
	}
	decision, evalErr := g.evaluator.Evaluate(ctx, gctx.Grants(), want)
	var err error
	switch {
	case evalErr != nil:
		log.Ctx(ctx).Error().Err(evalErr).
			Str("business_id", gctx.BusinessID()).
			Str("grant", want.String()).
			Msg("permission evaluation failed; denying")
		err = apperr.Wrap(apperr.KindForbidden, op, evalErr)
	case decision != permission.Allowed:
		err = apperr.New(apperr.KindForbidden, op, "missing grant "+want.String())
	}
	g.record(ctx, "authorize", err)
	return err
}

func (g *Guard) record(ctx context.Context, stage string, err error) {
	if g.decisions == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	g.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

// Within authorizes want for gctx and, only when allowed, runs handler with gctx.
// The handler's result is returned unchanged.
func Within[T any](ctx context.Context, a Authorizer, gctx Context, want permission.Grant, handler func(context.Context, Context) (T, error)) (T, error) {
	if err := a.Authorize(ctx, gctx, want); err != nil {
		var zero T
		return zero, err
	}
	return handler(ctx, gctx)
}

// Run resolves token, authorizes want and runs handler. It is the composed entry point
// for callers that hold a raw token rather than an already resolved Context.
func Run[T any](ctx context.Context, g *Guard, token string, want permission.Grant, handler func(context.Context, Context) (T, error)) (T, error) {
	gctx, err := g.Resolve(ctx, token)
	if err != nil {
		var zero T
		return zero, err
	}
	return Within(ctx, g, gctx, want, handler)
}
