package policy

import (
	"testing"

	"github.com/classmark/attendance/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantCode string
	}{
		{"empty", "", domain.CodeEmptyPassword},
		{"too short", "Ab1@", domain.CodePasswordTooShort},
		{"short even if strong", "Aa1@aaa", domain.CodePasswordTooShort},
		{"no uppercase", "password1@", domain.CodeWeakPassword},
		{"no lowercase", "PASSWORD1@", domain.CodeWeakPassword},
		{"no digit", "Password@@", domain.CodeWeakPassword},
		{"no symbol", "Password11", domain.CodeWeakPassword},
		{"unlisted symbol only", "Password1#", domain.CodeWeakPassword},
		{"valid", "Password1@", ""},
		{"valid with other symbols", "S3cure&pass", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ValidatePassword(%q) = %v, want nil", tt.password, err)
				}
				return
			}
			if !domain.IsCode(err, tt.wantCode) {
				t.Fatalf("ValidatePassword(%q) code = %q, want %q", tt.password, domain.CodeOf(err), tt.wantCode)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@sub.example.org",
		"a+tag@example.co",
	}
	invalid := []string{
		"",
		"plainaddress",
		"@example.com",
		"user@",
		"user@example",
		"user @example.com",
	}

	for _, e := range valid {
		if !ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = false, want true", e)
		}
	}
	for _, e := range invalid {
		if ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = true, want false", e)
		}
	}
}
