package authgate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventOnboardingCheck        = "onboarding_check"
	auditEventOnboardingOtpSent      = "onboarding_otp_sent"
	auditEventOnboardingOtpVerified  = "onboarding_otp_verified"
	auditEventOnboardingPasswordSet  = "onboarding_password_set"
	auditEventOnboardingCompleted    = "onboarding_completed"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetVerify    = "password_reset_otp_verify"
	auditEventPasswordResetComplete  = "password_reset_complete"
	auditEventGuardianResetRequest   = "guardian_reset_request"
	auditEventGuardianResetComplete  = "guardian_reset_complete"
	auditEventPasskeyFallbackRequest = "passkey_fallback_request"
	auditEventPasskeyFallbackIssued  = "passkey_fallback_issued"
	auditEventPasskeyFallbackUsed    = "passkey_fallback_used"
	auditEventStepUpStarted          = "stepup_started"
	auditEventStepUpPolled           = "stepup_polled"
	auditEventStepUpTokenRefreshed   = "stepup_token_refreshed"
	auditEventMFAEnrollmentStarted   = "mfa_enrollment_started"
	auditEventMFAEnrollmentConfirmed = "mfa_enrollment_confirmed"
	auditEventMFAChallengeSent       = "mfa_challenge_sent"
	auditEventAccountActivated       = "account_activated"
	auditEventAccountLocked          = "account_locked"
	auditEventAccountUnlocked        = "account_unlocked"
	auditEventAccountDeactivated     = "account_deactivated"
	auditEventAccountProvisioned     = "account_provisioned"
)

// AuditErrorCode defines a public type used by authgate APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrUserNotFound      AuditErrorCode = "user_not_found"
	auditErrAccountLocked     AuditErrorCode = "account_locked"
	auditErrAccountDeactived  AuditErrorCode = "account_deactivated"
	auditErrNotProvisioned    AuditErrorCode = "not_provisioned"
	auditErrStateConflict     AuditErrorCode = "state_conflict"
	auditErrPasswordPolicy    AuditErrorCode = "password_policy"
	auditErrInvalidToken      AuditErrorCode = "invalid_token"
	auditErrNoEnrollment      AuditErrorCode = "no_enrollment"
	auditErrMFANotRequired    AuditErrorCode = "mfa_not_required"
	auditErrProviderRejected  AuditErrorCode = "provider_rejected"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrIncompleteFlow    AuditErrorCode = "onboarding_incomplete"
	auditErrFlowDisabled      AuditErrorCode = "flow_disabled"
	auditErrGuardianResetNone AuditErrorCode = "guardian_reset_none_removed"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	loginID string,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		LoginID:   loginID,
		UserID:    userID,
		Actor:     actorFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return auditErrProviderRejected
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDeactivated):
		return auditErrAccountDeactived
	case errors.Is(err, ErrAccountNotProvisioned):
		return auditErrNotProvisioned
	case errors.Is(err, ErrAlreadyProvisioned),
		errors.Is(err, ErrUserAlreadyExists),
		errors.Is(err, ErrEmailNotVerified),
		errors.Is(err, ErrEmailAlreadyVerified),
		errors.Is(err, ErrPasswordAlreadySet),
		errors.Is(err, ErrPasswordNotSet),
		errors.Is(err, ErrAccountNotLocked),
		errors.Is(err, ErrAccountNotActive),
		errors.Is(err, ErrLockConflict):
		return auditErrStateConflict
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrFallbackMarkerInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrNoGuardianEnrollment),
		errors.Is(err, ErrNoPasskeyEnrollment):
		return auditErrNoEnrollment
	case errors.Is(err, ErrGuardianResetFailed):
		return auditErrGuardianResetNone
	case errors.Is(err, ErrMFANotRequired):
		return auditErrMFANotRequired
	case errors.Is(err, ErrOnboardingIncomplete):
		return auditErrIncompleteFlow
	case errors.Is(err, ErrFlowDisabled):
		return auditErrFlowDisabled
	case errors.Is(err, ErrIdentityProviderUnavailable),
		errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
