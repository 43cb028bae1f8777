package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/backend/internal/business/domain"
	"chatdesk/backend/internal/encryption"
	"chatdesk/backend/internal/guard/guardtest"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
)

type mockBusinessRepo struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential // keyed by business/name
}

func newMockBusinessRepo() *mockBusinessRepo {
	return &mockBusinessRepo{creds: map[string]*domain.Credential{}}
}

func (m *mockBusinessRepo) GetByID(context.Context, string) (*domain.Business, error) { return nil, nil }
func (m *mockBusinessRepo) Create(context.Context, *domain.Business) error            { return nil }

func (m *mockBusinessRepo) GetCredential(_ context.Context, businessID, name string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[businessID+"/"+name]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockBusinessRepo) UpsertCredential(_ context.Context, c *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.creds[c.BusinessID+"/"+c.Name] = &cp
	return nil
}

func (m *mockBusinessRepo) DeleteCredential(_ context.Context, businessID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creds[businessID+"/"+name]
	delete(m.creds, businessID+"/"+name)
	return ok, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingAudit) LogEvent(_ context.Context, _, _, action, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func newCredentials(t *testing.T) (*Credentials, *mockBusinessRepo, *guardtest.Fixture, *recordingAudit) {
	t.Helper()
	enc, err := encryption.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	f := guardtest.NewFixture()
	f.AddBusiness("biz-a", "Acme")
	f.AddBusiness("biz-b", "Globex")
	f.AddEmployee("biz-a", "emp-owner", "Owner", permission.BusinessRead, permission.BusinessUpdate)
	f.AddEmployee("biz-a", "emp-agent", "Agent", permission.ConversationsRead)
	f.AddEmployee("biz-b", "emp-b", "Bo", permission.BusinessRead, permission.BusinessUpdate)
	repo := newMockBusinessRepo()
	rec := &recordingAudit{}
	return NewCredentials(repo, enc, f.Guard(), WithAuditLogger(rec)), repo, f, rec
}

func TestCredentials_SetThenRead(t *testing.T) {
	svc, repo, f, rec := newCredentials(t)
	owner := f.Resolve(t, "emp-owner")
	ctx := context.Background()

	require.NoError(t, svc.SetProviderCredential(ctx, owner, "whatsapp_token", "EAAG-secret"))

	stored := repo.creds["biz-a/whatsapp_token"]
	require.NotNil(t, stored)
	assert.NotContains(t, stored.Envelope, "EAAG-secret")

	value, set, err := svc.ProviderCredential(ctx, owner, "whatsapp_token")
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, "EAAG-secret", value)
	assert.Equal(t, []string{"credential_set"}, rec.actions)
}

func TestCredentials_Unset(t *testing.T) {
	svc, _, f, _ := newCredentials(t)
	value, set, err := svc.ProviderCredential(context.Background(), f.Resolve(t, "emp-owner"), "openai_key")
	require.NoError(t, err)
	assert.False(t, set)
	assert.Empty(t, value)
}

func TestCredentials_TamperedEnvelopeIsDecryptionError(t *testing.T) {
	svc, repo, f, _ := newCredentials(t)
	owner := f.Resolve(t, "emp-owner")
	ctx := context.Background()
	require.NoError(t, svc.SetProviderCredential(ctx, owner, "openai_key", "sk-123"))

	stored := repo.creds["biz-a/openai_key"]
	env := []byte(stored.Envelope)
	last := len(env) - 1
	if env[last] == '0' {
		env[last] = '1'
	} else {
		env[last] = '0'
	}
	stored.Envelope = string(env)

	value, set, err := svc.ProviderCredential(ctx, owner, "openai_key")
	assert.ErrorIs(t, err, apperr.ErrDecryption)
	assert.False(t, set)
	assert.Empty(t, value)
}

func TestCredentials_TenantScoped(t *testing.T) {
	svc, _, f, _ := newCredentials(t)
	ctx := context.Background()
	require.NoError(t, svc.SetProviderCredential(ctx, f.Resolve(t, "emp-owner"), "openai_key", "sk-a"))

	_, set, err := svc.ProviderCredential(ctx, f.Resolve(t, "emp-b"), "openai_key")
	require.NoError(t, err)
	assert.False(t, set)

	deleted, err := svc.DeleteProviderCredential(ctx, f.Resolve(t, "emp-b"), "openai_key")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCredentials_RequiresGrants(t *testing.T) {
	svc, repo, f, _ := newCredentials(t)
	agent := f.Resolve(t, "emp-agent")
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetProviderCredential(ctx, agent, "k", "v"), apperr.ErrForbidden)
	_, _, err := svc.ProviderCredential(ctx, agent, "k")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.DeleteProviderCredential(ctx, agent, "k")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Empty(t, repo.creds)
}

func TestCredentials_Delete(t *testing.T) {
	svc, _, f, rec := newCredentials(t)
	owner := f.Resolve(t, "emp-owner")
	ctx := context.Background()
	require.NoError(t, svc.SetProviderCredential(ctx, owner, "k", "v"))

	deleted, err := svc.DeleteProviderCredential(ctx, owner, "k")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, set, err := svc.ProviderCredential(ctx, owner, "k")
	require.NoError(t, err)
	assert.False(t, set)
	assert.Equal(t, []string{"credential_set", "credential_delete"}, rec.actions)
}
