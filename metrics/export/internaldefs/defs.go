// Package internaldefs maps engine metric IDs onto stable exported names.
// Exporters and the snapshot endpoint share this table so a counter is never
// published under two names.
package internaldefs

import authgate "github.com/obsidianbank/authgate"

// CounterDef defines a public type used by authgate APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID          authgate.MetricID
	Name        string
	Description string
}

// CounterDefs is an exported constant or variable used by the identity gateway engine.
var CounterDefs = []CounterDef{
	{authgate.MetricOnboardingOtpSent, "authgate_onboarding_otp_sent_total", "Onboarding verification codes dispatched"},
	{authgate.MetricOnboardingOtpVerified, "authgate_onboarding_otp_verified_total", "Onboarding verification codes accepted"},
	{authgate.MetricOnboardingPasswordSet, "authgate_onboarding_password_set_total", "First credentials established"},
	{authgate.MetricOnboardingCompleted, "authgate_onboarding_completed_total", "Onboarding flows finished"},
	{authgate.MetricPasswordResetRequest, "authgate_password_reset_request_total", "Password reset codes dispatched"},
	{authgate.MetricPasswordResetTokenIssued, "authgate_password_reset_token_issued_total", "Reset tokens issued after OTP verification"},
	{authgate.MetricPasswordResetSuccess, "authgate_password_reset_success_total", "Credentials replaced via reset"},
	{authgate.MetricPasswordResetFailure, "authgate_password_reset_failure_total", "Reset completions rejected"},
	{authgate.MetricGuardianResetRequest, "authgate_guardian_reset_request_total", "Push-authenticator reset codes dispatched"},
	{authgate.MetricGuardianResetSuccess, "authgate_guardian_reset_success_total", "Push-authenticator resets completed"},
	{authgate.MetricGuardianResetFailure, "authgate_guardian_reset_failure_total", "Push-authenticator resets that removed nothing"},
	{authgate.MetricPasskeyFallbackIssued, "authgate_passkey_fallback_issued_total", "Passkey fallback markers issued"},
	{authgate.MetricPasskeyFallbackConsumed, "authgate_passkey_fallback_consumed_total", "Passkey fallback markers redeemed"},
	{authgate.MetricStepUpStarted, "authgate_stepup_started_total", "Step-up push approvals dispatched"},
	{authgate.MetricStepUpApproved, "authgate_stepup_approved_total", "Step-up push approvals granted"},
	{authgate.MetricStepUpRejected, "authgate_stepup_rejected_total", "Step-up push approvals denied"},
	{authgate.MetricMFAEnrollmentStarted, "authgate_mfa_enrollment_started_total", "MFA enrollments begun"},
	{authgate.MetricMFAEnrollmentConfirmed, "authgate_mfa_enrollment_confirmed_total", "MFA enrollments confirmed"},
	{authgate.MetricAccountActivated, "authgate_account_activated_total", "Accounts activated"},
	{authgate.MetricAccountLocked, "authgate_account_locked_total", "Accounts locked"},
	{authgate.MetricAccountUnlocked, "authgate_account_unlocked_total", "Accounts unlocked"},
	{authgate.MetricAccountDeactivated, "authgate_account_deactivated_total", "Accounts deactivated"},
	{authgate.MetricRateLimitHit, "authgate_rate_limit_hit_total", "OTP sends refused by rate limiting"},
	{authgate.MetricProviderFailure, "authgate_provider_failure_total", "Identity provider calls that failed"},
}

// Name returns the exported name for a metric ID, or "authgate_unknown" for
// IDs this table does not know.
func Name(id authgate.MetricID) string {
	for _, def := range CounterDefs {
		if def.ID == id {
			return def.Name
		}
	}
	return "authgate_unknown"
}
