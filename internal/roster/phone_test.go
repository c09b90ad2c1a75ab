package roster

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		// National numbers take the default region
		{"10 digits plain", "5551234567", "+15551234567", false},
		{"10 digits with dashes", "555-123-4567", "+15551234567", false},
		{"10 digits with parens", "(555) 123-4567", "+15551234567", false},
		{"10 digits with dots", "555.123.4567", "+15551234567", false},
		{"11 digits with 1", "15551234567", "+15551234567", false},
		{"11 digits formatted", "1-555-123-4567", "+15551234567", false},

		// Already E.164
		{"E.164 format", "+15551234567", "+15551234567", false},
		{"E.164 with spaces", "+1 555 123 4567", "+15551234567", false},
		{"UK number", "+447911123456", "+447911123456", false},

		// Invalid
		{"empty string", "", "", true},
		{"email", "guardian@example.com", "", true},
		{"few digits", "123", "", true},
		{"9 digits", "555123456", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("NormalizePhone(%q) error = %v, want ErrInvalidPhone", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizePhoneInRegion(t *testing.T) {
	got, err := NormalizePhoneIn("07911 123456", "gb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+447911123456" {
		t.Fatalf("got %q", got)
	}
}

func TestGuardianPhone(t *testing.T) {
	if v, err := GuardianPhone(nil); err != nil || v.Valid {
		t.Fatalf("nil input: %+v %v", v, err)
	}
	blank := "   "
	if v, err := GuardianPhone(&blank); err != nil || v.Valid {
		t.Fatalf("blank input: %+v %v", v, err)
	}
	raw := "555-123-4567"
	v, err := GuardianPhone(&raw)
	if err != nil || !v.Valid || v.String != "+15551234567" {
		t.Fatalf("formatted input: %+v %v", v, err)
	}
	bad := "12"
	if _, err := GuardianPhone(&bad); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}
