package authgate

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "reset token TTL must be positive",
			mutate:  func(c *Config) { c.PasswordReset.TokenTTL = 0 },
			wantErr: "TokenTTL",
		},
		{
			name:    "marker TTL must be positive",
			mutate:  func(c *Config) { c.PasskeyFallback.MarkerTTL = 0 },
			wantErr: "MarkerTTL",
		},
		{
			name:    "enabled flow needs a purpose",
			mutate:  func(c *Config) { c.Onboarding.OtpPurpose = "" },
			wantErr: "OtpPurpose",
		},
		{
			name: "purposes must be distinct",
			mutate: func(c *Config) {
				c.GuardianReset.OtpPurpose = c.PasswordReset.OtpPurpose
			},
			wantErr: "distinct",
		},
		{
			name:    "min length must be positive",
			mutate:  func(c *Config) { c.Password.MinLength = 0 },
			wantErr: "MinLength",
		},
		{
			name: "disabled flow skips its checks",
			mutate: func(c *Config) {
				c.PasskeyFallback.Enabled = false
				c.PasskeyFallback.MarkerTTL = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("Build() without redis must fail")
	}

	builder := New()
	builder.config.PasswordReset.Enabled = false
	builder.config.PasskeyFallback.Enabled = false
	if _, err := builder.Build(); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Fatalf("Build() error = %v, want missing directory", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	builder := New().
		WithUserDirectory(newMemoryDirectory()).
		WithOtpGateway(&fakeOtpGateway{}).
		WithIdentityGateway(&fakeIdentityGateway{})
	builder.config.PasswordReset.Enabled = false
	builder.config.PasskeyFallback.Enabled = false

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := builder.Build(); err == nil {
		t.Fatal("second Build() must fail")
	}
}
