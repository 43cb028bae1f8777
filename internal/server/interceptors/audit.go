package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"chatdesk/backend/internal/audit"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/platform/apperr"
)

// AuditUnary returns a unary server interceptor that records an audit log entry after each
// authenticated RPC. skipMethods is the set of full method names to not audit (e.g. health).
// Logging is best-effort and never changes the RPC result.
func AuditUnary(logger audit.AuditLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if logger == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		gctx, ok := guard.FromContext(ctx)
		if !ok {
			return resp, err
		}
		ar := audit.ParseFullMethod(info.FullMethod)
		logger.LogEvent(ctx, gctx.BusinessID(), gctx.EmployeeID(), ar.Action, ar.Resource, status.Code(apperr.Status(err)).String())
		return resp, err
	}
}
