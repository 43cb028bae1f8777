package handler

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"chatdesk/backend/internal/audit/domain"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/guard/guardtest"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
)

type mockAuditRepo struct {
	logs []*domain.AuditLog
}

func (m *mockAuditRepo) Create(_ context.Context, a *domain.AuditLog) error {
	m.logs = append(m.logs, a)
	return nil
}

func (m *mockAuditRepo) ListByBusiness(_ context.Context, businessID string, limit, offset int32) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	for _, a := range m.logs {
		if a.BusinessID == businessID {
			out = append(out, a)
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func newServer(t *testing.T) (*Server, *guardtest.Fixture) {
	t.Helper()
	f := guardtest.NewFixture()
	f.AddBusiness("biz-a", "Acme")
	f.AddBusiness("biz-b", "Globex")
	f.AddEmployee("biz-a", "emp-owner", "Owner", permission.AllGrants()...)
	f.AddEmployee("biz-a", "emp-agent", "Agent", permission.ConversationsRead)
	f.AddEmployee("biz-b", "emp-bo", "Bo", permission.AllGrants()...)

	repo := &mockAuditRepo{}
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		repo.logs = append(repo.logs, &domain.AuditLog{
			ID: "a-" + strconv.Itoa(i), BusinessID: "biz-a", EmployeeID: "emp-agent",
			Action: "takeover", Resource: "conversation", IP: "10.0.0.1", Metadata: "OK", CreatedAt: at,
		})
	}
	repo.logs = append(repo.logs, &domain.AuditLog{ID: "b-0", BusinessID: "biz-b", Action: "login", Resource: "auth", CreatedAt: at})
	return NewServer(repo, f.Guard()), f
}

func TestListAuditLogs_PagesWithinBusiness(t *testing.T) {
	srv, f := newServer(t)
	ctx := guard.WithContext(context.Background(), f.Resolve(t, "emp-owner"))

	in, err := structpb.NewStruct(map[string]interface{}{"page_size": 2})
	require.NoError(t, err)
	out, err := srv.ListAuditLogs(ctx, in)
	require.NoError(t, err)
	logs := out.Fields["logs"].GetListValue().GetValues()
	require.Len(t, logs, 2)
	assert.Equal(t, "a-0", logs[0].GetStructValue().Fields["id"].GetStringValue())
	assert.Equal(t, "takeover", logs[0].GetStructValue().Fields["action"].GetStringValue())
	token := out.Fields["next_page_token"].GetStringValue()
	assert.Equal(t, "2", token)

	in, err = structpb.NewStruct(map[string]interface{}{"page_size": 2, "page_token": token})
	require.NoError(t, err)
	out, err = srv.ListAuditLogs(ctx, in)
	require.NoError(t, err)
	logs = out.Fields["logs"].GetListValue().GetValues()
	require.Len(t, logs, 1)
	assert.Equal(t, "a-2", logs[0].GetStructValue().Fields["id"].GetStringValue())
	assert.Empty(t, out.Fields["next_page_token"].GetStringValue())
}

func TestListAuditLogs_OtherBusinessSeesOnlyItsOwn(t *testing.T) {
	srv, f := newServer(t)
	ctx := guard.WithContext(context.Background(), f.Resolve(t, "emp-bo"))

	out, err := srv.ListAuditLogs(ctx, &structpb.Struct{})
	require.NoError(t, err)
	logs := out.Fields["logs"].GetListValue().GetValues()
	require.Len(t, logs, 1)
	assert.Equal(t, "b-0", logs[0].GetStructValue().Fields["id"].GetStringValue())
}

func TestListAuditLogs_RequiresManageGrant(t *testing.T) {
	srv, f := newServer(t)
	ctx := guard.WithContext(context.Background(), f.Resolve(t, "emp-agent"))

	_, err := srv.ListAuditLogs(ctx, &structpb.Struct{})
	assert.True(t, apperr.KindOf(err) == apperr.KindForbidden, "err = %v", err)

	_, err = srv.ListAuditLogs(context.Background(), &structpb.Struct{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}
