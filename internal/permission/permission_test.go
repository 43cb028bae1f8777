package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrant(t *testing.T) {
	g, err := ParseGrant("conversations", "takeover")
	require.NoError(t, err)
	assert.Equal(t, ConversationsTakeover, g)

	for _, bad := range [][2]string{
		{"conversations", "*"},
		{"*", "read"},
		{"Conversations", "read"},
		{"conversations", ""},
		{"tickets", "read"},
	} {
		_, err := ParseGrant(bad[0], bad[1])
		assert.Error(t, err, "ParseGrant(%q, %q)", bad[0], bad[1])
	}
}

func TestSet_IsImmutableCopy(t *testing.T) {
	grants := []Grant{ConversationsRead}
	s := NewSet(grants...)
	grants[0] = ConversationsDelete
	assert.True(t, s.Has(ConversationsRead))
	assert.False(t, s.Has(ConversationsDelete))
}

func TestAllGrants_CoversEveryPair(t *testing.T) {
	all := NewSet(AllGrants()...)
	assert.Equal(t, len(resources)*len(actions), all.Len())
	assert.True(t, all.Has(EmployeesDelete))
}

// evaluators returns every Evaluator implementation so both are held to the same table.
func evaluators(t *testing.T) map[string]Evaluator {
	t.Helper()
	r, err := NewRegoEvaluator(context.Background())
	require.NoError(t, err)
	return map[string]Evaluator{
		"static": NewStaticEvaluator(),
		"rego":   r,
	}
}

func TestEvaluate_ExactMatchDefaultDeny(t *testing.T) {
	agent := NewSet(ConversationsRead, ConversationsTakeover, MessagesRead)

	testCases := []struct {
		name   string
		grants Set
		want   Grant
		expect Decision
	}{
		{"granted pair", agent, ConversationsTakeover, Allowed},
		{"same resource other action", agent, ConversationsDelete, Denied},
		{"same action other resource", agent, Grant{ResourceMessages, ActionTakeover}, Denied},
		{"manage does not imply delete", NewSet(Grant{ResourceConversations, ActionManage}), ConversationsDelete, Denied},
		{"empty set", Set{}, ConversationsRead, Denied},
		{"zero grant", agent, Grant{}, Denied},
	}
	for name, ev := range evaluators(t) {
		for _, tc := range testCases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				d, err := ev.Evaluate(context.Background(), tc.grants, tc.want)
				require.NoError(t, err)
				assert.Equal(t, tc.expect, d)
			})
		}
	}
}

func TestEvaluate_EveryUngrantedPairDenied(t *testing.T) {
	agent := NewSet(ConversationsRead, ConversationsTakeover)
	for name, ev := range evaluators(t) {
		for _, g := range AllGrants() {
			d, err := ev.Evaluate(context.Background(), agent, g)
			require.NoError(t, err)
			if agent.Has(g) {
				assert.Equal(t, Allowed, d, "%s %s", name, g)
			} else {
				assert.Equal(t, Denied, d, "%s %s", name, g)
			}
		}
	}
}

func TestRegoEvaluator_HealthCheck(t *testing.T) {
	r, err := NewRegoEvaluator(context.Background())
	require.NoError(t, err)
	assert.NoError(t, r.HealthCheck(context.Background()))
}

func TestDecision_ZeroValueDenies(t *testing.T) {
	var d Decision
	assert.Equal(t, Denied, d)
	assert.Equal(t, "denied", d.String())
}
