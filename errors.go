package authgate

import "errors"

var (
	// ErrUserNotFound is an exported constant or variable used by the identity gateway engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is an exported constant or variable used by the identity gateway engine.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrAccountLocked is an exported constant or variable used by the identity gateway engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountNotLocked is an exported constant or variable used by the identity gateway engine.
	ErrAccountNotLocked = errors.New("account not locked")
	// ErrLockConflict is an exported constant or variable used by the identity gateway engine.
	ErrLockConflict = errors.New("account already locked with a different lock type")
	// ErrAccountDeactivated is an exported constant or variable used by the identity gateway engine.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrAccountNotActive is an exported constant or variable used by the identity gateway engine.
	ErrAccountNotActive = errors.New("account not active")
	// ErrAccountNotProvisioned is an exported constant or variable used by the identity gateway engine.
	ErrAccountNotProvisioned = errors.New("account has no identity provider user")
	// ErrAlreadyProvisioned is an exported constant or variable used by the identity gateway engine.
	ErrAlreadyProvisioned = errors.New("account already linked to an identity provider user")
	// ErrEmailNotVerified is an exported constant or variable used by the identity gateway engine.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrEmailAlreadyVerified is an exported constant or variable used by the identity gateway engine.
	ErrEmailAlreadyVerified = errors.New("email already verified")
	// ErrPasswordAlreadySet is an exported constant or variable used by the identity gateway engine.
	ErrPasswordAlreadySet = errors.New("password already established")
	// ErrPasswordNotSet is an exported constant or variable used by the identity gateway engine.
	ErrPasswordNotSet = errors.New("password not established for account")
	// ErrPasswordPolicy is an exported constant or variable used by the identity gateway engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrOnboardingIncomplete is an exported constant or variable used by the identity gateway engine.
	ErrOnboardingIncomplete = errors.New("onboarding steps incomplete")
	// ErrResetTokenInvalid is an exported constant or variable used by the identity gateway engine.
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
	// ErrFallbackMarkerInvalid is an exported constant or variable used by the identity gateway engine.
	ErrFallbackMarkerInvalid = errors.New("passkey fallback marker invalid or expired")
	// ErrNoGuardianEnrollment is an exported constant or variable used by the identity gateway engine.
	ErrNoGuardianEnrollment = errors.New("no confirmed push authenticator enrolled")
	// ErrNoPasskeyEnrollment is an exported constant or variable used by the identity gateway engine.
	ErrNoPasskeyEnrollment = errors.New("no passkey enrolled for account")
	// ErrGuardianResetFailed is an exported constant or variable used by the identity gateway engine.
	ErrGuardianResetFailed = errors.New("no push authenticator could be removed")
	// ErrMFANotRequired is an exported constant or variable used by the identity gateway engine.
	ErrMFANotRequired = errors.New("authentication did not trigger an mfa challenge")
	// ErrIdentityProviderUnavailable is an exported constant or variable used by the identity gateway engine.
	ErrIdentityProviderUnavailable = errors.New("identity provider unavailable")
	// ErrStoreUnavailable is an exported constant or variable used by the identity gateway engine.
	ErrStoreUnavailable = errors.New("token store backend unavailable")
	// ErrFlowDisabled is an exported constant or variable used by the identity gateway engine.
	ErrFlowDisabled = errors.New("flow disabled by configuration")
)
