package authgate

import (
	"errors"
	"time"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Onboarding      OnboardingConfig
	PasswordReset   PasswordResetConfig
	GuardianReset   GuardianResetConfig
	PasskeyFallback PasskeyFallbackConfig
	StepUp          StepUpConfig
	Password        PasswordPolicyConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
}

/*
====================================
ONBOARDING CONFIG
====================================
*/

// OnboardingConfig defines a public type used by authgate APIs.
//
// OnboardingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OnboardingConfig struct {
	Enabled bool
	// OtpPurpose namespaces onboarding codes away from other flows sharing
	// the same OTP gateway.
	OtpPurpose string
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines a public type used by authgate APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	Enabled    bool
	OtpPurpose string
	// TokenTTL bounds the window between OTP verification and the actual
	// credential replacement.
	TokenTTL    time.Duration
	RedisPrefix string
	// DecoyExpirySeconds is the expiry echoed on the indistinguishable
	// response for unknown accounts. Keep it equal to the real OTP expiry.
	DecoyExpirySeconds int
}

/*
====================================
GUARDIAN RESET CONFIG
====================================
*/

// GuardianResetConfig defines a public type used by authgate APIs.
//
// GuardianResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GuardianResetConfig struct {
	Enabled    bool
	OtpPurpose string
}

/*
====================================
PASSKEY FALLBACK CONFIG
====================================
*/

// PasskeyFallbackConfig defines a public type used by authgate APIs.
//
// PasskeyFallbackConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasskeyFallbackConfig struct {
	Enabled    bool
	OtpPurpose string
	// MarkerTTL bounds how long a verified fallback allows one password login.
	MarkerTTL   time.Duration
	RedisPrefix string
}

/*
====================================
STEP-UP CONFIG
====================================
*/

// StepUpConfig defines a public type used by authgate APIs.
//
// StepUpConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StepUpConfig struct {
	Enabled bool
	// DefaultMessage is shown on the push approval when the caller supplies none.
	DefaultMessage string
}

/*
====================================
PASSWORD POLICY CONFIG
====================================
*/

// PasswordPolicyConfig defines a public type used by authgate APIs.
//
// PasswordPolicyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by authgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Onboarding: OnboardingConfig{
			Enabled:    true,
			OtpPurpose: "email_verification",
		},
		PasswordReset: PasswordResetConfig{
			Enabled:            true,
			OtpPurpose:         "password_reset",
			TokenTTL:           15 * time.Minute,
			RedisPrefix:        "agrt",
			DecoyExpirySeconds: 120,
		},
		GuardianReset: GuardianResetConfig{
			Enabled:    true,
			OtpPurpose: "guardian_reset",
		},
		PasskeyFallback: PasskeyFallbackConfig{
			Enabled:     true,
			OtpPurpose:  "passkey_fallback",
			MarkerTTL:   5 * time.Minute,
			RedisPrefix: "agfm",
		},
		StepUp: StepUpConfig{
			Enabled:        true,
			DefaultMessage: "Approve this request in your authenticator app",
		},
		Password: PasswordPolicyConfig{
			MinLength:        12,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireDigit:     true,
			RequireSymbol:    true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.PasswordReset.Enabled {
		if c.PasswordReset.TokenTTL <= 0 {
			return errors.New("PasswordReset.TokenTTL must be positive")
		}
		if c.PasswordReset.OtpPurpose == "" {
			return errors.New("PasswordReset.OtpPurpose must be set")
		}
	}
	if c.PasskeyFallback.Enabled {
		if c.PasskeyFallback.MarkerTTL <= 0 {
			return errors.New("PasskeyFallback.MarkerTTL must be positive")
		}
		if c.PasskeyFallback.OtpPurpose == "" {
			return errors.New("PasskeyFallback.OtpPurpose must be set")
		}
	}
	if c.Onboarding.Enabled && c.Onboarding.OtpPurpose == "" {
		return errors.New("Onboarding.OtpPurpose must be set")
	}
	if c.GuardianReset.Enabled && c.GuardianReset.OtpPurpose == "" {
		return errors.New("GuardianReset.OtpPurpose must be set")
	}
	if c.Password.MinLength <= 0 {
		return errors.New("Password.MinLength must be positive")
	}
	if purposeCollision(c) {
		return errors.New("OtpPurpose values must be distinct across flows")
	}
	return nil
}

func purposeCollision(c Config) bool {
	seen := make(map[string]bool, 4)
	for _, p := range []string{
		c.Onboarding.OtpPurpose,
		c.PasswordReset.OtpPurpose,
		c.GuardianReset.OtpPurpose,
		c.PasskeyFallback.OtpPurpose,
	} {
		if p == "" {
			continue
		}
		if seen[p] {
			return true
		}
		seen[p] = true
	}
	return false
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}
