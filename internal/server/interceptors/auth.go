package interceptors

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/platform/apperr"
)

// Resolver maps a session token to a guard.Context.
type Resolver interface {
	Resolve(ctx context.Context, token string) (guard.Context, error)
}

// SessionToucher records activity on a session.
type SessionToucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// GuardUnary returns a unary server interceptor that resolves the session token of every
// protected RPC and stores the guard.Context for the handler. publicMethods (Login, health)
// run without one. touch may be nil; a failed touch is logged and does not fail the RPC.
func GuardUnary(r Resolver, touch SessionToucher, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		gctx, err := r.Resolve(ctx, extractToken(ctx))
		if err != nil {
			return nil, apperr.Status(err)
		}
		if touch != nil {
			if err := touch.Touch(ctx, gctx.SessionID()); err != nil {
				log.Ctx(ctx).Debug().Err(err).Str("session_id", gctx.SessionID()).Msg("guard: touch failed")
			}
		}
		return handler(guard.WithContext(ctx, gctx), req)
	}
}
