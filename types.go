package authgate

import (
	"context"
	"fmt"
	"net/http"
)

// OtpStatus defines a public type used by authgate APIs.
//
// OtpStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OtpStatus uint8

const (
	// OtpSent is an exported constant or variable used by the identity gateway engine.
	OtpSent OtpStatus = iota
	// OtpVerified is an exported constant or variable used by the identity gateway engine.
	OtpVerified
	// OtpAlreadyVerified is an exported constant or variable used by the identity gateway engine.
	OtpAlreadyVerified
	// OtpInvalidCode is an exported constant or variable used by the identity gateway engine.
	OtpInvalidCode
	// OtpExpired is an exported constant or variable used by the identity gateway engine.
	OtpExpired
	// OtpMaxAttempts is an exported constant or variable used by the identity gateway engine.
	OtpMaxAttempts
	// OtpRateLimited is an exported constant or variable used by the identity gateway engine.
	OtpRateLimited
	// OtpSendFailed is an exported constant or variable used by the identity gateway engine.
	OtpSendFailed
)

// Code describes the code operation and its observable behavior.
//
// Code does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s OtpStatus) Code() string {
	switch s {
	case OtpSent:
		return "sent"
	case OtpVerified:
		return "verified"
	case OtpAlreadyVerified:
		return "already_verified"
	case OtpInvalidCode:
		return "invalid_code"
	case OtpExpired:
		return "expired"
	case OtpMaxAttempts:
		return "max_attempts_exceeded"
	case OtpRateLimited:
		return "rate_limited"
	case OtpSendFailed:
		return "send_failed"
	}
	return "send_failed"
}

// HTTPStatus maps every delivery and verification status onto a response
// status. The mapping is total: unknown values fall through to 500 so a
// new status can never leak out as a 200.
func (s OtpStatus) HTTPStatus() int {
	switch s {
	case OtpSent, OtpVerified:
		return http.StatusOK
	case OtpAlreadyVerified, OtpInvalidCode, OtpExpired, OtpMaxAttempts:
		return http.StatusBadRequest
	case OtpRateLimited:
		return http.StatusTooManyRequests
	case OtpSendFailed:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// OtpOutcome defines a public type used by authgate APIs.
//
// OtpOutcome instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OtpOutcome struct {
	Status OtpStatus
	// ExpiresInSeconds is set for OtpSent.
	ExpiresInSeconds int
	// RemainingAttempts is set for OtpInvalidCode.
	RemainingAttempts int
	// RetryAfterSeconds is set for OtpRateLimited.
	RetryAfterSeconds int
	// Reason carries the provider failure detail for OtpSendFailed.
	Reason string
}

// Ok describes the ok operation and its observable behavior.
//
// Ok does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (o OtpOutcome) Ok() bool {
	return o.Status == OtpSent || o.Status == OtpVerified
}

// OtpVerificationGateway abstracts the one-time code channel used to prove
// control of an email address before a sensitive step proceeds. Failures
// are modeled as statuses, not errors, so every caller handles the full set.
type OtpVerificationGateway interface {
	Send(ctx context.Context, destination, displayName, purpose string) OtpOutcome
	Verify(ctx context.Context, destination, code, purpose string) OtpOutcome
}

// PushApprovalStatus defines a public type used by authgate APIs.
//
// PushApprovalStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PushApprovalStatus uint8

const (
	// PushPending is an exported constant or variable used by the identity gateway engine.
	PushPending PushApprovalStatus = iota
	// PushApproved is an exported constant or variable used by the identity gateway engine.
	PushApproved
	// PushRejected is an exported constant or variable used by the identity gateway engine.
	PushRejected
	// PushExpired is an exported constant or variable used by the identity gateway engine.
	PushExpired
	// PushError is an exported constant or variable used by the identity gateway engine.
	PushError
)

// Code describes the code operation and its observable behavior.
//
// Code does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s PushApprovalStatus) Code() string {
	switch s {
	case PushPending:
		return "pending"
	case PushApproved:
		return "approved"
	case PushRejected:
		return "rejected"
	case PushExpired:
		return "expired"
	}
	return "error"
}

// Terminal reports whether polling may stop. Polling a terminal challenge
// again returns the same status.
func (s PushApprovalStatus) Terminal() bool {
	return s == PushApproved || s == PushRejected || s == PushExpired
}

// ProviderError defines a public type used by authgate APIs.
//
// ProviderError instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ProviderError struct {
	Code        string
	Description string
	HTTPStatus  int
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error %s: %s", e.Code, e.Description)
}

// Authenticator defines a public type used by authgate APIs.
//
// Authenticator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Authenticator struct {
	ID         string
	Type       string
	Confirmed  bool
	Name       string
	OOBChannel string
}

const (
	// AuthenticatorTypePush is an exported constant or variable used by the identity gateway engine.
	AuthenticatorTypePush = "push"
	// AuthenticatorTypeTOTP is an exported constant or variable used by the identity gateway engine.
	AuthenticatorTypeTOTP = "totp"
)

// OnboardingResult defines a public type used by authgate APIs.
//
// OnboardingResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OnboardingResult struct {
	MFARequired bool
	MFAToken    string
	AccessToken string
	IDToken     string
}

// ReauthResult defines a public type used by authgate APIs.
//
// ReauthResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ReauthResult struct {
	MFARequired bool
	MFAToken    string
	// ExpiresAt is the unix time the fresh challenge token stops being usable.
	ExpiresAt int64
}

// MFAAssociation defines a public type used by authgate APIs.
//
// MFAAssociation instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFAAssociation struct {
	AuthenticatorType string
	Secret            string
	BarcodeURI        string
	OOBCode           string
	RecoveryCodes     []string
}

// MFAChallengeInfo defines a public type used by authgate APIs.
//
// MFAChallengeInfo instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFAChallengeInfo struct {
	ChallengeType string
	OOBCode       string
}

// MFATokenGrant defines a public type used by authgate APIs.
//
// MFATokenGrant instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MFATokenGrant struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int
}

// IdentityGateway is the upstream identity provider boundary. All credential
// material lives behind it; the engine only orchestrates calls and interprets
// the provider's business errors.
type IdentityGateway interface {
	// CompleteOnboarding replaces the provider-side password and immediately
	// reauthenticates, surfacing the provider's MFA challenge when one fires.
	CompleteOnboarding(ctx context.Context, providerUserID, email, password string) (OnboardingResult, error)
	// MarkOnboardingComplete stamps the provider profile once activation succeeds.
	MarkOnboardingComplete(ctx context.Context, providerUserID string) error

	ListAuthenticators(ctx context.Context, providerUserID string) ([]Authenticator, error)
	DeleteAuthenticator(ctx context.Context, providerUserID, authenticatorID string) error

	// StepUpStart dispatches a push approval carrying a human-readable message
	// and returns the opaque code used to poll for the decision.
	StepUpStart(ctx context.Context, mfaToken, message string) (string, error)
	StepUpVerify(ctx context.Context, mfaToken, oobCode string) (PushApprovalStatus, *MFATokenGrant, error)
	// Reauthenticate exchanges first-factor credentials for a fresh MFA
	// challenge token when the provider demands a second factor.
	Reauthenticate(ctx context.Context, email, password string) (ReauthResult, error)

	MFAEnrollments(ctx context.Context, mfaToken string) ([]Authenticator, error)
	MFAAssociate(ctx context.Context, mfaToken, authenticatorType string) (MFAAssociation, error)
	MFAChallenge(ctx context.Context, mfaToken, oobCode string) (PushApprovalStatus, *MFATokenGrant, error)
	MFAVerify(ctx context.Context, mfaToken, code string) (PushApprovalStatus, *MFATokenGrant, error)
	MFASendChallenge(ctx context.Context, mfaToken, authenticatorID, challengeType string) (MFAChallengeInfo, error)
	MFAVerifyChallenge(ctx context.Context, mfaToken, code, oobCode string) (PushApprovalStatus, *MFATokenGrant, error)

	SendPasswordResetEmail(ctx context.Context, email string) error
}

// UserDirectory is the account-of-record lookup and persistence boundary.
// Implementations must return ErrUserNotFound (or an error wrapping it) when
// no account matches.
type UserDirectory interface {
	FindByLoginID(ctx context.Context, loginID string) (*UserAccount, error)
	FindByEmail(ctx context.Context, email string) (*UserAccount, error)
	Save(ctx context.Context, account *UserAccount) error
}
