package permission

import "context"

// Decision is the outcome of evaluating one grant request.
type Decision int

const (
	// Denied is the zero value so that an unset decision never allows.
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Evaluator decides whether a grant set allows a requested (resource, action).
// Implementations must deny by default and must return Denied alongside any error.
type Evaluator interface {
	Evaluate(ctx context.Context, grants Set, want Grant) (Decision, error)
}

// StaticEvaluator is the in-process exact-match evaluator.
type StaticEvaluator struct{}

// NewStaticEvaluator returns a StaticEvaluator.
func NewStaticEvaluator() StaticEvaluator { return StaticEvaluator{} }

// Evaluate allows only when want is present in grants.
func (StaticEvaluator) Evaluate(_ context.Context, grants Set, want Grant) (Decision, error) {
	if grants.Has(want) {
		return Allowed, nil
	}
	return Denied, nil
}
