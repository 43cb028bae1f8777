// Package handler exposes operator management over gRPC.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatdesk.employee.v1.EmployeeService"

// Deleter removes operators.
type Deleter interface {
	Delete(ctx context.Context, gctx guard.Context, employeeID string) ([]string, error)
}

// EmployeeServiceServer is the server API of EmployeeService.
type EmployeeServiceServer interface {
	DeleteEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements EmployeeService.
type Server struct {
	employees Deleter
}

// NewServer returns an EmployeeService server.
func NewServer(employees Deleter) *Server {
	return &Server{employees: employees}
}

// ServiceDesc describes EmployeeService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EmployeeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "DeleteEmployee", func(s EmployeeServiceServer) rpc.Method { return s.DeleteEmployee }),
	},
	Metadata: "chatdesk/employee/v1/employee.proto",
}

// DeleteEmployee removes an operator and returns the conversations handed back to AI.
func (s *Server) DeleteEmployee(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	gctx, err := rpc.Caller(ctx)
	if err != nil {
		return nil, err
	}
	employeeID, err := rpc.Required(in, "employee_id")
	if err != nil {
		return nil, err
	}
	released, err := s.employees.Delete(ctx, gctx, employeeID)
	if err != nil {
		return nil, err
	}
	return rpc.Out(map[string]interface{}{"released_conversation_ids": rpc.Strings(released)})
}
