// Package service manages the provider credentials a business holds. Secrets are encrypted
// before they reach storage and decrypted only on read.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"chatdesk/backend/internal/audit"
	"chatdesk/backend/internal/business/domain"
	"chatdesk/backend/internal/business/repository"
	"chatdesk/backend/internal/encryption"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
)

// Credentials stores and reads encrypted provider credentials of the caller's business.
type Credentials struct {
	repo    repository.Repository
	enc     *encryption.Service
	authz   guard.Authorizer
	audit   audit.AuditLogger
	timeout time.Duration
	now     func() time.Time
}

// Option configures Credentials.
type Option func(*Credentials)

// WithTimeout bounds each storage call.
func WithTimeout(d time.Duration) Option { return func(c *Credentials) { c.timeout = d } }

// WithAuditLogger records credential changes.
func WithAuditLogger(l audit.AuditLogger) Option { return func(c *Credentials) { c.audit = l } }

// NewCredentials returns a credential service. enc must not be nil.
func NewCredentials(repo repository.Repository, enc *encryption.Service, authz guard.Authorizer, opts ...Option) *Credentials {
	c := &Credentials{repo: repo, enc: enc, authz: authz, audit: audit.Nop{}, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Credentials) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// SetProviderCredential encrypts value and stores it under name, replacing any previous value.
func (c *Credentials) SetProviderCredential(ctx context.Context, gctx guard.Context, name, value string) error {
	_, err := guard.Within(ctx, c.authz, gctx, permission.BusinessUpdate,
		func(ctx context.Context, gctx guard.Context) (struct{}, error) {
			const op = "business.set_credential"
			name = strings.TrimSpace(name)
			if name == "" {
				return struct{}{}, apperr.New(apperr.KindNotFound, op, "credential name required")
			}
			env, err := c.enc.Encrypt(value)
			if err != nil {
				return struct{}{}, apperr.Wrap(apperr.KindInternal, op, err)
			}
			ctx, cancel := c.bound(ctx)
			defer cancel()
			err = c.repo.UpsertCredential(ctx, &domain.Credential{
				BusinessID: gctx.BusinessID(),
				Name:       name,
				Envelope:   env.String(),
				UpdatedAt:  c.now().UTC(),
			})
			if err != nil {
				return struct{}{}, apperr.FromStorageContext(ctx, op, err)
			}
			c.audit.LogEvent(ctx, gctx.BusinessID(), gctx.EmployeeID(), "credential_set", "business", name)
			return struct{}{}, nil
		})
	return err
}

// ProviderCredential returns the decrypted credential. set is false when none is stored.
// A stored envelope that cannot be decrypted is a Decryption error, never an empty value.
func (c *Credentials) ProviderCredential(ctx context.Context, gctx guard.Context, name string) (value string, set bool, err error) {
	type result struct {
		value string
		set   bool
	}
	r, err := guard.Within(ctx, c.authz, gctx, permission.BusinessRead,
		func(ctx context.Context, gctx guard.Context) (result, error) {
			const op = "business.get_credential"
			ctx, cancel := c.bound(ctx)
			defer cancel()
			cred, err := c.repo.GetCredential(ctx, gctx.BusinessID(), strings.TrimSpace(name))
			if err != nil {
				return result{}, apperr.FromStorageContext(ctx, op, err)
			}
			if cred == nil || encryption.Envelope(cred.Envelope).IsEmpty() {
				return result{}, nil
			}
			plain, err := c.enc.Decrypt(encryption.Envelope(cred.Envelope))
			if err != nil {
				log.Ctx(ctx).Error().
					Str("business_id", gctx.BusinessID()).
					Str("credential", cred.Name).
					Msg("business: stored credential failed to decrypt")
				return result{}, err
			}
			return result{value: plain, set: true}, nil
		})
	return r.value, r.set, err
}

// DeleteProviderCredential removes the credential. deleted is false when none was stored.
func (c *Credentials) DeleteProviderCredential(ctx context.Context, gctx guard.Context, name string) (bool, error) {
	return guard.Within(ctx, c.authz, gctx, permission.BusinessUpdate,
		func(ctx context.Context, gctx guard.Context) (bool, error) {
			const op = "business.delete_credential"
			ctx, cancel := c.bound(ctx)
			defer cancel()
			deleted, err := c.repo.DeleteCredential(ctx, gctx.BusinessID(), strings.TrimSpace(name))
			if err != nil {
				return false, apperr.FromStorageContext(ctx, op, err)
			}
			if deleted {
				c.audit.LogEvent(ctx, gctx.BusinessID(), gctx.EmployeeID(), "credential_delete", "business", name)
			}
			return deleted, nil
		})
}
