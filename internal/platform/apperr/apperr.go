// Package apperr defines the closed set of failure kinds returned across the guard and
// conversation boundaries, and their mapping to gRPC status codes.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a failure. Callers switch on Kind, never on error text.
type Kind int

const (
	// KindInternal is a storage or programming failure that is neither a timeout nor a missing row.
	KindInternal Kind = iota
	// KindUnauthenticated: no session, or the session is expired or revoked.
	KindUnauthenticated
	// KindForbidden: authenticated but lacking a grant, or acting on another employee's session.
	KindForbidden
	// KindNotFound: absent, or owned by another business. The two are indistinguishable on purpose.
	KindNotFound
	// KindConflict: a concurrent transition won the compare-and-set.
	KindConflict
	// KindConfiguration: required key material is missing. Fatal at process start.
	KindConfiguration
	// KindDecryption: malformed envelope, tag mismatch or foreign key.
	KindDecryption
	// KindTimeout: a storage call exceeded its bound. Safe to retry.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConfiguration:
		return "configuration"
	case KindDecryption:
		return "decryption"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is the only error type returned by guard, session, encryption and handoff operations.
type Error struct {
	Kind Kind
	// Op names the operation that failed (e.g. "handoff.takeover").
	Op string
	// Msg is the client-visible message. Empty means Kind.String().
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, apperr.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInternal        = &Error{Kind: KindInternal}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrDecryption      = &Error{Kind: KindDecryption}
	ErrTimeout         = &Error{Kind: KindTimeout}
)

// New returns an *Error with the given kind, operation and message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap returns an *Error with the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err. Errors that are not *Error are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromStorage converts a repository error into an *Error. Deadline and cancellation become
// KindTimeout; an *Error passes through; anything else is KindInternal.
func FromStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, op, err)
	}
	return Wrap(KindInternal, op, err)
}

// FromStorageContext is FromStorage, except that a failure observed after ctx expired is
// reported as KindTimeout even when the driver did not wrap the context error.
func FromStorageContext(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) && ctx.Err() != nil {
		return Wrap(KindTimeout, op, fmt.Errorf("%w: %v", ctx.Err(), err))
	}
	return FromStorage(op, err)
}

// Status converts err into a gRPC status error. Internal causes are not exposed to clients.
func Status(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if _, ok := status.FromError(err); ok && !errors.As(err, &e) {
		return err
	}
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, "internal error")
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	switch e.Kind {
	case KindUnauthenticated:
		return status.Error(codes.Unauthenticated, msg)
	case KindForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case KindNotFound:
		return status.Error(codes.NotFound, msg)
	case KindConflict:
		return status.Error(codes.Aborted, msg)
	case KindConfiguration, KindDecryption:
		return status.Error(codes.FailedPrecondition, msg)
	case KindTimeout:
		return status.Error(codes.DeadlineExceeded, msg)
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
