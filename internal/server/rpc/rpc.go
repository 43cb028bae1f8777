// Package rpc builds hand-written gRPC service descriptors whose requests and responses are
// google.protobuf.Struct documents, and holds the helpers handlers share to read and write them.
package rpc

import (
	"context"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/platform/apperr"
)

// Method is one unary RPC.
type Method func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// Unary returns the descriptor of method name on service. pick selects the implementation
// from the registered server value.
func Unary[S any](service, name string, pick func(S) Method) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			m := pick(srv.(S))
			if interceptor == nil {
				return m(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return m(ctx, req.(*structpb.Struct))
			})
		},
	}
}

// FullMethod returns "/service/name".
func FullMethod(service, name string) string { return "/" + service + "/" + name }

// Caller returns the guard.Context the guard interceptor stored for this request.
func Caller(ctx context.Context) (guard.Context, error) {
	gctx, ok := guard.FromContext(ctx)
	if !ok {
		return guard.Context{}, apperr.New(apperr.KindUnauthenticated, "rpc", "request not resolved")
	}
	return gctx, nil
}

// String returns the trimmed string field key, or "".
func String(in *structpb.Struct, key string) string {
	v, ok := in.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// Required returns the string field key or an InvalidArgument status when it is empty.
func Required(in *structpb.Struct, key string) (string, error) {
	s := String(in, key)
	if s == "" {
		return "", status.Error(codes.InvalidArgument, key+" required")
	}
	return s, nil
}

// Int returns the numeric field key, or def when absent. Numeric strings are accepted.
func Int(in *structpb.Struct, key string, def int) int {
	v, ok := in.GetFields()[key]
	if !ok {
		return def
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return int(k.NumberValue)
	case *structpb.Value_StringValue:
		if n, err := strconv.Atoi(strings.TrimSpace(k.StringValue)); err == nil {
			return n
		}
	}
	return def
}

// Out builds a response document from m. Values must be structpb-compatible.
func Out(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return s, nil
}

// Empty is the response of RPCs that return nothing.
func Empty() *structpb.Struct { return &structpb.Struct{} }

// Time formats t as RFC 3339, or "" for the zero time and nil.
func Time(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Strings converts ids to a list value.
func Strings(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Page reads page_size and page_token (an offset) with the default and maximum page size applied.
func Page(in *structpb.Struct) (limit, offset int32) {
	limit = int32(Int(in, "page_size", defaultPageSize))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if tok := String(in, "page_token"); tok != "" {
		if n, err := strconv.ParseInt(tok, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}

// NextPageToken returns the token for the page after one of n items, or "" on the last page.
func NextPageToken(n int, limit, offset int32) string {
	if n < int(limit) {
		return ""
	}
	return strconv.Itoa(int(offset + limit))
}
