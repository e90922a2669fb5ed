package audit

import "testing"

func TestParseRoute(t *testing.T) {
	testCases := []struct {
		method, pattern  string
		action, resource string
	}{
		{"POST", "/v1/signals/batch", "batch", "signal"},
		{"POST", "/v1/tamper-flags/{id}/review", "review", "tamper_flag"},
		{"POST", "/v1/auth/refresh", "refresh", "auth"},
		{"POST", "/v1/auth/logout", "logout", "auth"},
		{"GET", "/v1/tamper-flags", "list", "tamper_flag"},
		{"GET", "/v1/tamper-flags/{id}", "get", "tamper_flag"},
		{"DELETE", "/v1/devices/{id}", "delete", "device"},
		{"PATCH", "/v1/devices/{id}", "update", "device"},
		{"POST", "/v1/access", "create", "access"},
		{"POST", "/", "create", "unknown"},
		{"OPTIONS", "", "options", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.pattern, func(t *testing.T) {
			ar := ParseRoute(tc.method, tc.pattern)
			if ar.Action != tc.action {
				t.Errorf("action = %q, want %q", ar.Action, tc.action)
			}
			if ar.Resource != tc.resource {
				t.Errorf("resource = %q, want %q", ar.Resource, tc.resource)
			}
		})
	}
}
