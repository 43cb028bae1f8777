// Package guardtest provides in-memory tenants, operators and sessions for tests that need a
// guard.Context. Contexts are produced by a real guard.Guard, never assembled by hand.
package guardtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	businessdomain "chatdesk/backend/internal/business/domain"
	employeedomain "chatdesk/backend/internal/employee/domain"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
	sessiondomain "chatdesk/backend/internal/session/domain"
)

// Fixture is an in-memory directory of businesses, employees, roles and sessions.
type Fixture struct {
	mu         sync.Mutex
	businesses map[string]*businessdomain.Business
	employees  map[string]*employeedomain.Employee
	roles      map[string]role
	sessions   map[string]*sessiondomain.Session // keyed by token
}

type role struct {
	businessID string
	grants     []permission.Grant
}

// NewFixture returns an empty Fixture.
func NewFixture() *Fixture {
	return &Fixture{
		businesses: map[string]*businessdomain.Business{},
		employees:  map[string]*employeedomain.Employee{},
		roles:      map[string]role{},
		sessions:   map[string]*sessiondomain.Session{},
	}
}

// AddBusiness registers a business.
func (f *Fixture) AddBusiness(id, name string) *businessdomain.Business {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &businessdomain.Business{ID: id, Name: name, SubscriptionStatus: "active", CreatedAt: time.Now().UTC()}
	f.businesses[id] = b
	return b
}

// AddEmployee registers an operator of businessID with a private role holding grants.
func (f *Fixture) AddEmployee(businessID, id, name string, grants ...permission.Grant) *employeedomain.Employee {
	f.mu.Lock()
	defer f.mu.Unlock()
	roleID := "role-" + id
	f.roles[roleID] = role{businessID: businessID, grants: grants}
	e := &employeedomain.Employee{
		ID:            id,
		BusinessID:    businessID,
		RoleID:        roleID,
		Email:         id + "@example.test",
		Name:          name,
		EmailVerified: true,
		CreatedAt:     time.Now().UTC(),
	}
	f.employees[id] = e
	return e
}

// RemoveEmployee deletes an operator; later resolves of their sessions fail.
func (f *Fixture) RemoveEmployee(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.employees, id)
}

// SetGrants replaces the grants of the employee's role.
func (f *Fixture) SetGrants(employeeID string, grants ...permission.Grant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.employees[employeeID]
	r := f.roles[e.RoleID]
	r.grants = grants
	f.roles[e.RoleID] = r
}

// Login creates a usable session for the employee and returns its token.
func (f *Fixture) Login(employeeID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.employees[employeeID]
	now := time.Now().UTC()
	token := uuid.New().String()
	f.sessions[token] = &sessiondomain.Session{
		ID:             uuid.New().String(),
		EmployeeID:     e.ID,
		BusinessID:     e.BusinessID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
	}
	return token
}

// Revoke revokes the session behind token.
func (f *Fixture) Revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[token]; ok {
		at := time.Now().UTC()
		s.RevokedAt = &at
	}
}

// Session returns a copy of the session behind token.
func (f *Fixture) Session(token string) sessiondomain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.sessions[token]
}

// Guard returns a Guard over the fixture using the exact-match evaluator.
func (f *Fixture) Guard() *guard.Guard {
	return guard.New(f.Sessions(), f.Employees(), f.Businesses(), f.Grants(), permission.NewStaticEvaluator(), time.Second)
}

// Sessions returns the fixture's guard.SessionLookup.
func (f *Fixture) Sessions() Sessions { return Sessions{f} }

// Employees returns the fixture's guard.EmployeeStore.
func (f *Fixture) Employees() Employees { return Employees{f} }

// Businesses returns the fixture's guard.BusinessStore.
func (f *Fixture) Businesses() Businesses { return Businesses{f} }

// Grants returns the fixture's guard.GrantStore.
func (f *Fixture) Grants() Grants { return Grants{f} }

// Resolve logs the employee in and resolves the session through a real Guard.
func (f *Fixture) Resolve(tb testing.TB, employeeID string) guard.Context {
	tb.Helper()
	gctx, err := f.Guard().Resolve(context.Background(), f.Login(employeeID))
	if err != nil {
		tb.Fatalf("guardtest: resolve %s: %v", employeeID, err)
	}
	return gctx
}

// Sessions implements guard.SessionLookup.
type Sessions struct{ f *Fixture }

// Lookup returns the usable session behind token.
func (s Sessions) Lookup(ctx context.Context, token string) (*sessiondomain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	sess, ok := s.f.sessions[token]
	if !ok || !sess.Usable(time.Now()) {
		return nil, apperr.New(apperr.KindUnauthenticated, "guardtest.lookup", "session not usable")
	}
	cp := *sess
	return &cp, nil
}

// Employees implements guard.EmployeeStore.
type Employees struct{ f *Fixture }

// GetByID returns the employee or nil.
func (e Employees) GetByID(ctx context.Context, id string) (*employeedomain.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.f.mu.Lock()
	defer e.f.mu.Unlock()
	emp, ok := e.f.employees[id]
	if !ok {
		return nil, nil
	}
	cp := *emp
	return &cp, nil
}

// Businesses implements guard.BusinessStore.
type Businesses struct{ f *Fixture }

// GetByID returns the business or nil.
func (b Businesses) GetByID(ctx context.Context, id string) (*businessdomain.Business, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.f.mu.Lock()
	defer b.f.mu.Unlock()
	biz, ok := b.f.businesses[id]
	if !ok {
		return nil, nil
	}
	cp := *biz
	return &cp, nil
}

// Grants implements guard.GrantStore.
type Grants struct{ f *Fixture }

// GrantsForRole returns the role's grants when the role belongs to businessID.
func (g Grants) GrantsForRole(ctx context.Context, businessID, roleID string) ([]permission.Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	r, ok := g.f.roles[roleID]
	if !ok || (r.businessID != "" && r.businessID != businessID) {
		return nil, nil
	}
	return append([]permission.Grant(nil), r.grants...), nil
}
