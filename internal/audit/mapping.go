package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Methods whose audit action is not derivable from the method name.
var methodOverrides = map[string]ActionResource{
	"/chatdesk.conversation.v1.ConversationService/Takeover":     {Action: "takeover", Resource: "conversation"},
	"/chatdesk.conversation.v1.ConversationService/GiveBackToAI": {Action: "give_back", Resource: "conversation"},
	"/chatdesk.conversation.v1.ConversationService/Clear":        {Action: "clear", Resource: "conversation"},
	"/chatdesk.auth.v1.AuthService/Logout":                       {Action: "logout", Resource: "session"},
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /chatdesk.employee.v1.EmployeeService/DeleteEmployee -> delete, employee).
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := methodOverrides[fullMethod]; ok {
		return ar
	}
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

var actionPrefixes = []struct {
	prefix, action string
}{
	{"Get", "get"},
	{"Has", "get"},
	{"List", "list"},
	{"Create", "create"},
	{"Set", "update"},
	{"Update", "update"},
	{"Delete", "delete"},
	{"Revoke", "revoke"},
	{"Touch", "touch"},
}

func methodToAction(method string) string {
	for _, p := range actionPrefixes {
		if strings.HasPrefix(method, p.prefix) && method != p.prefix {
			return p.action
		}
	}
	return strings.ToLower(method)
}
