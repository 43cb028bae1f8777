package guard

import (
	"context"

	businessdomain "chatdesk/backend/internal/business/domain"
	employeedomain "chatdesk/backend/internal/employee/domain"
	"chatdesk/backend/internal/permission"
)

// Context is the resolved identity of one request: the tenant, the operator and the operator's
// grants as they were when the request was resolved. It is produced only by Guard.Resolve and
// is the only legitimate source of a business id for downstream storage access.
// The zero value is unauthenticated.
type Context struct {
	business  businessdomain.Business
	employee  employeedomain.Employee
	sessionID string
	grants    permission.Set
}

// IsZero reports whether c was not produced by Resolve.
func (c Context) IsZero() bool { return c.business.ID == "" || c.employee.ID == "" }

// BusinessID is the tenant id every query made on behalf of this request filters by.
func (c Context) BusinessID() string { return c.business.ID }

// Business returns a copy of the resolved business.
func (c Context) Business() businessdomain.Business { return c.business }

// EmployeeID is the id of the calling operator.
func (c Context) EmployeeID() string { return c.employee.ID }

// Employee returns a copy of the calling operator. PasswordHash is never populated.
func (c Context) Employee() employeedomain.Employee { return c.employee }

// EmployeeName is the operator name used in system messages.
func (c Context) EmployeeName() string { return c.employee.DisplayName() }

// SessionID is the session the request authenticated with.
func (c Context) SessionID() string { return c.sessionID }

// Grants returns the grant set frozen at resolve time.
func (c Context) Grants() permission.Set { return c.grants }

type ctxKey struct{}

// WithContext returns ctx carrying gctx. Used by the transport layer after Resolve.
func WithContext(ctx context.Context, gctx Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, gctx)
}

// FromContext returns the Context stored by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	gctx, ok := ctx.Value(ctxKey{}).(Context)
	return gctx, ok && !gctx.IsZero()
}
