// Package handler exposes business provider credentials over gRPC. Secrets are write-only on
// this surface: clients can set, test for and delete a credential but never read it back.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatdesk.business.v1.BusinessService"

// Credentials is the credential service the server delegates to.
type Credentials interface {
	SetProviderCredential(ctx context.Context, gctx guard.Context, name, value string) error
	ProviderCredential(ctx context.Context, gctx guard.Context, name string) (string, bool, error)
	DeleteProviderCredential(ctx context.Context, gctx guard.Context, name string) (bool, error)
}

// BusinessServiceServer is the server API of BusinessService.
type BusinessServiceServer interface {
	SetProviderCredential(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HasProviderCredential(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteProviderCredential(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements BusinessService.
type Server struct {
	creds Credentials
}

// NewServer returns a BusinessService server.
func NewServer(creds Credentials) *Server {
	return &Server{creds: creds}
}

// ServiceDesc describes BusinessService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BusinessServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "SetProviderCredential", func(s BusinessServiceServer) rpc.Method { return s.SetProviderCredential }),
		rpc.Unary(ServiceName, "HasProviderCredential", func(s BusinessServiceServer) rpc.Method { return s.HasProviderCredential }),
		rpc.Unary(ServiceName, "DeleteProviderCredential", func(s BusinessServiceServer) rpc.Method { return s.DeleteProviderCredential }),
	},
	Metadata: "chatdesk/business/v1/business.proto",
}

// SetProviderCredential stores an encrypted credential under name.
func (s *Server) SetProviderCredential(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	name, err := rpc.Required(in, "name")
	if err != nil {
		return nil, err
	}
	value := in.GetFields()["value"].GetStringValue()
	if value == "" {
		return nil, status.Error(codes.InvalidArgument, "value required")
	}
	if err := s.creds.SetProviderCredential(ctx, gctx, name, value); err != nil {
		return nil, err
	}
	return rpc.Empty(), nil
}

// HasProviderCredential reports whether a credential is stored and decrypts cleanly.
func (s *Server) HasProviderCredential(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	name, err := rpc.Required(in, "name")
	if err != nil {
		return nil, err
	}
	_, set, err := s.creds.ProviderCredential(ctx, gctx, name)
	if err != nil {
		return nil, err
	}
	return rpc.Out(map[string]interface{}{"set": set})
}

// DeleteProviderCredential removes the credential stored under name.
func (s *Server) DeleteProviderCredential(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	name, err := rpc.Required(in, "name")
	if err != nil {
		return nil, err
	}
	deleted, err := s.creds.DeleteProviderCredential(ctx, gctx, name)
	if err != nil {
		return nil, err
	}
	return rpc.Out(map[string]interface{}{"deleted": deleted})
}
