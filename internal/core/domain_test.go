package core

import (
	"strings"
	"testing"
)

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr string
	}{
		{
			name: "valid",
			user: User{Name: "alice", Email: "alice@example.com"},
		},
		{
			name:    "blank name",
			user:    User{Name: "   ", Email: "alice@example.com"},
			wantErr: "empty user name",
		},
		{
			name:    "name too long",
			user:    User{Name: strings.Repeat("a", 101), Email: "alice@example.com"},
			wantErr: "user name too long",
		},
		{
			name:    "missing email",
			user:    User{Name: "alice"},
			wantErr: "empty user email",
		},
		{
			name:    "blank email",
			user:    User{Name: "alice", Email: "   "},
			wantErr: "empty user email",
		},
		{
			name:    "malformed email",
			user:    User{Name: "alice", Email: "not-an-address"},
			wantErr: "invalid user email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
