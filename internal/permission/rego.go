package permission

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const grantsQuery = "data.chatdesk.grants.allow"

// grantsPolicy mirrors StaticEvaluator: exact (resource, action) match, default deny.
const grantsPolicy = `package chatdesk.grants

default allow := false

allow if {
	some g in input.grants
	g.resource == input.request.resource
	g.action == input.request.action
}
`

// RegoEvaluator evaluates grants with an OPA Rego policy compiled once at startup.
// The compiled query holds no tenant data; grants are supplied per call.
type RegoEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewRegoEvaluator compiles the grants policy. A compile failure is a startup error.
func NewRegoEvaluator(ctx context.Context) (*RegoEvaluator, error) {
	q, err := rego.New(
		rego.Query(grantsQuery),
		rego.Module("grants.rego", grantsPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile grants policy: %w", err)
	}
	return &RegoEvaluator{query: q}, nil
}

// Evaluate runs the policy for want against grants. Evaluation errors deny.
func (e *RegoEvaluator) Evaluate(ctx context.Context, grants Set, want Grant) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(grants, want)))
	if err != nil {
		return Denied, fmt.Errorf("eval grants policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Denied, nil
	}
	if allowed, ok := rs[0].Expressions[0].Value.(bool); ok && allowed {
		return Allowed, nil
	}
	return Denied, nil
}

// HealthCheck verifies the prepared query evaluates and still denies an empty grant set.
func (e *RegoEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.Evaluate(ctx, Set{}, ConversationsRead)
	if err != nil {
		return err
	}
	if d != Denied {
		return fmt.Errorf("grants policy allowed an empty grant set")
	}
	return nil
}

func buildInput(grants Set, want Grant) map[string]interface{} {
	list := make([]interface{}, 0, grants.Len())
	for _, g := range grants.Grants() {
		list = append(list, map[string]interface{}{
			"resource": string(g.Resource),
			"action":   string(g.Action),
		})
	}
	return map[string]interface{}{
		"grants": list,
		"request": map[string]interface{}{
			"resource": string(want.Resource),
			"action":   string(want.Action),
		},
	}
}
