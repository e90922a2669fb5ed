package domain

import "testing"

func TestUser_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		user    User
		wantErr bool
		role    Role
	}{
		{"defaults to student", User{ProviderID: "gh-1", Login: "octo"}, false, RoleStudent},
		{"instructor kept", User{ProviderID: "gh-1", Login: "octo", Role: RoleInstructor}, false, RoleInstructor},
		{"missing provider id", User{Login: "octo"}, true, ""},
		{"missing login", User{ProviderID: "gh-1"}, true, ""},
		{"unknown role", User{ProviderID: "gh-1", Login: "octo", Role: "admin"}, true, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u := tc.user
			err := u.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("Validate should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if u.Role != tc.role {
				t.Errorf("Role = %q, want %q", u.Role, tc.role)
			}
		})
	}
}
