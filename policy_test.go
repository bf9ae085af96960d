package authgate

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	cfg := defaultConfig().Password

	tests := []struct {
		name     string
		password string
		wantErr  bool
		wantMsg  string
	}{
		{name: "valid", password: "Aa1!Aa1!Aa1!"},
		{name: "too short", password: "Aa1!", wantErr: true, wantMsg: "at least 12 characters"},
		{name: "weak", password: "weak", wantErr: true},
		{name: "no uppercase", password: "alllowercase123!", wantErr: true, wantMsg: "uppercase"},
		{name: "no lowercase", password: "ALLUPPERCASE123!", wantErr: true, wantMsg: "lowercase"},
		{name: "no digit", password: "NoDigitsAtAll!!!", wantErr: true, wantMsg: "digit"},
		{name: "no symbol", password: "NoSymbolsAtAll123", wantErr: true, wantMsg: "special"},
		{name: "symbol outside the fixed set", password: "OutsideSet123§§§", wantErr: true, wantMsg: "special"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(cfg, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrPasswordPolicy) {
				t.Fatalf("error %v does not wrap ErrPasswordPolicy", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"abc@example.com", "ab***@example.com"},
		{"not-an-email", "***"},
		{"@example.com", "***"},
		{"trailing@", "***"},
		{"", "***"},
	}

	for _, tt := range tests {
		if got := MaskEmail(tt.email); got != tt.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}
