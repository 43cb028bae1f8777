// Package handler exposes operator session management over gRPC.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatdesk.session.v1.SessionService"

// Store is the session store the server delegates to.
type Store interface {
	Revoke(ctx context.Context, caller guard.Context, sessionID string) error
	RevokeAllForEmployee(ctx context.Context, caller guard.Context) (int64, error)
	Touch(ctx context.Context, sessionID string) error
}

// SessionServiceServer is the server API of SessionService.
type SessionServiceServer interface {
	RevokeSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeAllSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Touch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements SessionService.
type Server struct {
	store Store
}

// NewServer returns a SessionService server.
func NewServer(store Store) *Server {
	return &Server{store: store}
}

// ServiceDesc describes SessionService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "RevokeSession", func(s SessionServiceServer) rpc.Method { return s.RevokeSession }),
		rpc.Unary(ServiceName, "RevokeAllSessions", func(s SessionServiceServer) rpc.Method { return s.RevokeAllSessions }),
		rpc.Unary(ServiceName, "Touch", func(s SessionServiceServer) rpc.Method { return s.Touch }),
	},
	Metadata: "chatdesk/session/v1/session.proto",
}

// RevokeSession revokes one of the caller's own sessions.
func (s *Server) RevokeSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := rpc.Required(in, "session_id")
	if err != nil {
		return nil, err
	}
	if err := s.store.Revoke(ctx, gctx, sessionID); err != nil {
		return nil, err
	}
	return rpc.Empty(), nil
}

// RevokeAllSessions signs the caller out everywhere, including the current session.
func (s *Server) RevokeAllSessions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.store.RevokeAllForEmployee(ctx, gctx)
	if err != nil {
		return nil, err
	}
	return rpc.Out(map[string]interface{}{"revoked": float64(n)})
}

// Touch records activity on the caller's current session without extending it.
func (s *Server) Touch(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.Touch(ctx, gctx.SessionID()); err != nil {
		return nil, err
	}
	return rpc.Empty(), nil
}
