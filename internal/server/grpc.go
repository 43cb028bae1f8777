package server

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"chatdesk/backend/internal/audit"
	audithandler "chatdesk/backend/internal/audit/handler"
	auditrepo "chatdesk/backend/internal/audit/repository"
	businesshandler "chatdesk/backend/internal/business/handler"
	conversationhandler "chatdesk/backend/internal/conversation/handler"
	employeehandler "chatdesk/backend/internal/employee/handler"
	"chatdesk/backend/internal/guard"
	identityhandler "chatdesk/backend/internal/identity/handler"
	"chatdesk/backend/internal/server/interceptors"
	"chatdesk/backend/internal/server/rpc"
	sessionhandler "chatdesk/backend/internal/session/handler"
)

var listAuditLogsMethod = rpc.FullMethod(audithandler.ServiceName, "ListAuditLogs")

// PublicMethods run without a session.
var PublicMethods = map[string]bool{
	identityhandler.LoginMethod:          true,
	healthpb.Health_Check_FullMethodName: true,
}

// quietMethods are neither audited nor logged per request.
var quietMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	listAuditLogsMethod:                  true,
}

// Deps holds the services behind the gRPC API.
type Deps struct {
	// Guard resolves the session token of every protected RPC.
	Guard interceptors.Resolver
	// Authorizer checks grants for handlers that authorize on their own (audit log).
	Authorizer guard.Authorizer
	// Sessions backs SessionService and records activity on every authenticated RPC.
	Sessions      sessionhandler.Store
	Auth          identityhandler.Authenticator
	Conversations conversationhandler.Machine
	Employees     employeehandler.Deleter
	Credentials   businesshandler.Credentials
	AuditRepo     auditrepo.Repository
	// AuditLogger records one entry per authenticated RPC. Nil disables the audit interceptor.
	AuditLogger audit.AuditLogger
	// Health serves grpc.health.v1. Nil registers a server that always reports SERVING.
	Health *health.Server
	Logger zerolog.Logger
}

// RegisterServices registers every gRPC service with s.
//
// Service → handler mapping:
//   - AuthService         → internal/identity/handler
//   - SessionService      → internal/session/handler
//   - ConversationService → internal/conversation/handler
//   - EmployeeService     → internal/employee/handler
//   - BusinessService     → internal/business/handler
//   - AuditService        → internal/audit/handler
//   - grpc.health.v1      → google.golang.org/grpc/health
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	s.RegisterService(&identityhandler.ServiceDesc, identityhandler.NewAuthServer(deps.Auth))
	s.RegisterService(&sessionhandler.ServiceDesc, sessionhandler.NewServer(deps.Sessions))
	s.RegisterService(&conversationhandler.ServiceDesc, conversationhandler.NewServer(deps.Conversations))
	s.RegisterService(&employeehandler.ServiceDesc, employeehandler.NewServer(deps.Employees))
	s.RegisterService(&businesshandler.ServiceDesc, businesshandler.NewServer(deps.Credentials))
	s.RegisterService(&audithandler.ServiceDesc, audithandler.NewServer(deps.AuditRepo, deps.Authorizer))
	hs := deps.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
}

// ServiceNames lists the application services, for health reporting.
func ServiceNames() []string {
	return []string{
		identityhandler.ServiceName,
		sessionhandler.ServiceName,
		conversationhandler.ServiceName,
		employeehandler.ServiceName,
		businesshandler.ServiceName,
		audithandler.ServiceName,
	}
}

// NewGRPCServer returns a server with the interceptor chain (logging, then guard, then audit)
// and OpenTelemetry instrumentation, with every service registered.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	var touch interceptors.SessionToucher
	if deps.Sessions != nil {
		touch = deps.Sessions
	}
	chain := []grpc.UnaryServerInterceptor{
		interceptors.LoggingUnary(deps.Logger, quietMethods),
		interceptors.GuardUnary(deps.Guard, touch, PublicMethods),
	}
	if deps.AuditLogger != nil {
		chain = append(chain, interceptors.AuditUnary(deps.AuditLogger, quietMethods))
	}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}
