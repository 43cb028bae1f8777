// Package handler exposes login and logout over gRPC.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/identity/service"
	"chatdesk/backend/internal/server/interceptors"
	"chatdesk/backend/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatdesk.auth.v1.AuthService"

// LoginMethod is the full method name of Login; it runs without a session.
var LoginMethod = rpc.FullMethod(ServiceName, "Login")

// Authenticator is the auth service the server delegates to.
type Authenticator interface {
	Login(ctx context.Context, businessID, email, password, ip string) (*service.LoginResult, error)
	Logout(ctx context.Context, gctx guard.Context) error
}

// AuthServiceServer is the server API of AuthService.
type AuthServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AuthServer implements AuthService.
type AuthServer struct {
	auth Authenticator
}

// NewAuthServer returns an AuthService server.
func NewAuthServer(auth Authenticator) *AuthServer {
	return &AuthServer{auth: auth}
}

// ServiceDesc describes AuthService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "Login", func(s AuthServiceServer) rpc.Method { return s.Login }),
		rpc.Unary(ServiceName, "Logout", func(s AuthServiceServer) rpc.Method { return s.Logout }),
	},
	Metadata: "chatdesk/auth/v1/auth.proto",
}

// Login authenticates an operator of business_id and returns a session token.
func (s *AuthServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	businessID, err := rpc.Required(in, "business_id")
	if err != nil {
		return nil, err
	}
	email, err := rpc.Required(in, "email")
	if err != nil {
		return nil, err
	}
	password, err := rpc.Required(in, "password")
	if err != nil {
		return nil, err
	}
	res, err := s.auth.Login(ctx, businessID, email, password, interceptors.ClientIP(ctx))
	if err != nil {
		return nil, err
	}
	return rpc.Out(map[string]interface{}{
		"session_token": res.Token,
		"session_id":    res.SessionID,
		"employee_id":   res.EmployeeID,
		"business_id":   res.BusinessID,
		"expires_at":    rpc.Time(&res.ExpiresAt),
	})
}

// Logout revokes the caller's current session.
func (s *AuthServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, gctx); err != nil {
		return nil, err
	}
	return rpc.Empty(), nil
}
