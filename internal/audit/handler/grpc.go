// Package handler exposes the security audit log of a business over gRPC.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	auditrepo "chatdesk/backend/internal/audit/repository"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
	"chatdesk/backend/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatdesk.audit.v1.AuditService"

// manageBusiness is required to read the audit log.
var manageBusiness = permission.Grant{Resource: permission.ResourceBusiness, Action: permission.ActionManage}

// AuditServiceServer is the server API of AuditService.
type AuditServiceServer interface {
	ListAuditLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements AuditService.
type Server struct {
	repo  auditrepo.Repository
	authz guard.Authorizer
}

// NewServer returns an AuditService server.
func NewServer(repo auditrepo.Repository, authz guard.Authorizer) *Server {
	return &Server{repo: repo, authz: authz}
}

// ServiceDesc describes AuditService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuditServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "ListAuditLogs", func(s AuditServiceServer) rpc.Method { return s.ListAuditLogs }),
	},
	Metadata: "chatdesk/audit/v1/audit.proto",
}

// ListAuditLogs returns a page of the caller's business audit log, newest first.
func (s *Server) ListAuditLogs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	limit, offset := rpc.Page(in)
	return guard.Within(ctx, s.authz, gctx, manageBusiness,
		func(ctx context.Context, gctx guard.Context) (*structpb.Struct, error) {
			list, err := s.repo.ListByBusiness(ctx, gctx.BusinessID(), limit, offset)
			if err != nil {
				return nil, apperr.FromStorageContext(ctx, "audit.list", err)
			}
			entries := make([]interface{}, len(list))
			for i, a := range list {
				entries[i] = map[string]interface{}{
					"id":          a.ID,
					"employee_id": a.EmployeeID,
					"action":      a.Action,
					"resource":    a.Resource,
					"ip":          a.IP,
					"metadata":    a.Metadata,
					"created_at":  rpc.Time(&a.CreatedAt),
				}
			}
			return rpc.Out(map[string]interface{}{
				"logs":            entries,
				"next_page_token": rpc.NextPageToken(len(list), limit, offset),
			})
		})
}
