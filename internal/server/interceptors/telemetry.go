package interceptors

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatdesk/backend/internal/platform/apperr"
)

// LoggingUnary returns the outermost unary server interceptor. It attaches a request logger to
// the context for log.Ctx, converts handler errors to gRPC statuses with apperr.Status and logs
// one line per RPC. skipMethods are served without the completion line (e.g. health probes).
func LoggingUnary(logger zerolog.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		reqLogger := logger.With().Str("method", info.FullMethod).Str("client_ip", ClientIP(ctx)).Logger()
		ctx = reqLogger.WithContext(ctx)

		resp, err := handler(ctx, req)
		err = apperr.Status(err)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		ev := reqLogger.Info()
		switch code {
		case codes.OK, codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.Aborted, codes.InvalidArgument:
		default:
			ev = reqLogger.Warn()
		}
		ev.Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")
		return resp, err
	}
}
