package audit

import (
	"testing"
)

func TestParseFullMethod(t *testing.T) {
	testCases := []struct {
		method   string
		action   string
		resource string
	}{
		{"/chatdesk.conversation.v1.ConversationService/GetConversation", "get", "conversation"},
		{"/chatdesk.conversation.v1.ConversationService/Takeover", "takeover", "conversation"},
		{"/chatdesk.conversation.v1.ConversationService/GiveBackToAI", "give_back", "conversation"},
		{"/chatdesk.conversation.v1.ConversationService/Clear", "clear", "conversation"},
		{"/chatdesk.employee.v1.EmployeeService/DeleteEmployee", "delete", "employee"},
		{"/chatdesk.business.v1.BusinessService/SetProviderCredential", "update", "business"},
		{"/chatdesk.business.v1.BusinessService/HasProviderCredential", "get", "business"},
		{"/chatdesk.session.v1.SessionService/RevokeSession", "revoke", "session"},
		{"/chatdesk.session.v1.SessionService/RevokeAllSessions", "revoke", "session"},
		{"/chatdesk.session.v1.SessionService/Touch", "touch", "session"},
		{"/chatdesk.audit.v1.AuditService/ListAuditLogs", "list", "audit"},
		{"/chatdesk.auth.v1.AuthService/Logout", "logout", "session"},
		{"/chatdesk.foo.v1.FooService/Ping", "ping", "foo"},
		{"/nodot/Ping", "ping", "unknown"},
		{"garbage", "unknown", "unknown"},
		{"/chatdesk.x.v1.Service/Get", "get", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.method, func(t *testing.T) {
			ar := ParseFullMethod(tc.method)
			if ar.Action != tc.action {
				t.Errorf("action = %q, want %q", ar.Action, tc.action)
			}
			if ar.Resource != tc.resource {
				t.Errorf("resource = %q, want %q", ar.Resource, tc.resource)
			}
		})
	}
}
