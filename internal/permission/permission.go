// Package permission models role grants as a closed set of (resource, action) pairs and
// evaluates them by exact match. Anything not explicitly granted is denied.
package permission

import (
	"fmt"
	"sort"
)

// Resource is a protected resource type.
type Resource string

const (
	ResourceConversations Resource = "conversations"
	ResourceMessages      Resource = "messages"
	ResourceEmployees     Resource = "employees"
	ResourceBusiness      Resource = "business"
	ResourceSessions      Resource = "sessions"
	ResourceRoles         Resource = "roles"
)

// Action is an operation on a Resource.
type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionTakeover Action = "takeover"
	ActionManage   Action = "manage"
)

var resources = map[Resource]bool{
	ResourceConversations: true,
	ResourceMessages:      true,
	ResourceEmployees:     true,
	ResourceBusiness:      true,
	ResourceSessions:      true,
	ResourceRoles:         true,
}

var actions = map[Action]bool{
	ActionRead:     true,
	ActionCreate:   true,
	ActionUpdate:   true,
	ActionDelete:   true,
	ActionTakeover: true,
	ActionManage:   true,
}

// ParseResource returns the Resource named s, or an error for anything outside the closed set.
func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if !resources[r] {
		return "", fmt.Errorf("permission: unknown resource %q", s)
	}
	return r, nil
}

// ParseAction returns the Action named s, or an error for anything outside the closed set.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !actions[a] {
		return "", fmt.Errorf("permission: unknown action %q", s)
	}
	return a, nil
}

// Grant is one allowed (resource, action) pair.
type Grant struct {
	Resource Resource
	Action   Action
}

// ParseGrant parses two strings as a Grant. Rows with unknown values are rejected rather than widened.
func ParseGrant(resource, action string) (Grant, error) {
	r, err := ParseResource(resource)
	if err != nil {
		return Grant{}, err
	}
	a, err := ParseAction(action)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Resource: r, Action: a}, nil
}

func (g Grant) String() string { return string(g.Resource) + ":" + string(g.Action) }

// Common grants.
var (
	ConversationsRead     = Grant{ResourceConversations, ActionRead}
	ConversationsTakeover = Grant{ResourceConversations, ActionTakeover}
	ConversationsDelete   = Grant{ResourceConversations, ActionDelete}
	MessagesRead          = Grant{ResourceMessages, ActionRead}
	EmployeesDelete       = Grant{ResourceEmployees, ActionDelete}
	BusinessRead          = Grant{ResourceBusiness, ActionRead}
	BusinessUpdate        = Grant{ResourceBusiness, ActionUpdate}
)

// Set is an immutable set of grants. The zero value grants nothing.
type Set struct {
	m map[Grant]struct{}
}

// NewSet copies grants into a new Set.
func NewSet(grants ...Grant) Set {
	m := make(map[Grant]struct{}, len(grants))
	for _, g := range grants {
		m[g] = struct{}{}
	}
	return Set{m: m}
}

// Has reports whether g is granted exactly. There is no wildcard or cross-resource inheritance.
func (s Set) Has(g Grant) bool {
	_, ok := s.m[g]
	return ok
}

// Len returns the number of grants.
func (s Set) Len() int { return len(s.m) }

// Grants returns the grants sorted by resource then action.
func (s Set) Grants() []Grant {
	out := make([]Grant, 0, len(s.m))
	for g := range s.m {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// AllGrants returns every (resource, action) pair; used for seeding owner roles.
func AllGrants() []Grant {
	out := make([]Grant, 0, len(resources)*len(actions))
	for r := range resources {
		for a := range actions {
			out = append(out, Grant{Resource: r, Action: a})
		}
	}
	return NewSet(out...).Grants()
}
