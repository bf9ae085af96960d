package authgate

import (
	"fmt"
	"strings"
	"unicode"
)

const passwordSymbolSet = `!@#$%^&*(),.?":{}|<>`

// ValidatePassword checks a candidate password against the policy and
// returns an error wrapping ErrPasswordPolicy naming the first violated
// rule. The symbol set is fixed; anything outside it does not count.
func ValidatePassword(cfg PasswordPolicyConfig, password string) error {
	if len(password) < cfg.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordPolicy, cfg.MinLength)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if cfg.RequireUppercase && !hasUpper {
		return fmt.Errorf("%w: must contain an uppercase letter", ErrPasswordPolicy)
	}
	if cfg.RequireLowercase && !hasLower {
		return fmt.Errorf("%w: must contain a lowercase letter", ErrPasswordPolicy)
	}
	if cfg.RequireDigit && !hasDigit {
		return fmt.Errorf("%w: must contain a digit", ErrPasswordPolicy)
	}
	if cfg.RequireSymbol && !strings.ContainsAny(password, passwordSymbolSet) {
		return fmt.Errorf("%w: must contain a special character", ErrPasswordPolicy)
	}

	return nil
}

// MaskEmail renders an email address safe for response bodies and logs.
// Local parts of one or two characters are fully masked; longer ones keep
// the first two characters. Anything that does not look like an address
// masks to "***".
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "***"
	}
	if at <= 2 {
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
