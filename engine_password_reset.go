package authgate

import (
	"context"
	"errors"
	"strings"

	"github.com/obsidianbank/authgate/internal/stores"
)

// ResetRequestResult defines a public type used by authgate APIs.
//
// ResetRequestResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetRequestResult struct {
	Outcome          OtpOutcome
	MaskedEmail      string
	ExpiresInSeconds int
}

// ResetVerifyResult defines a public type used by authgate APIs.
//
// ResetVerifyResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetVerifyResult struct {
	Outcome          OtpOutcome
	ResetToken       string
	ExpiresInSeconds int
}

// RequestPasswordReset starts the OTP-gated reset. Unknown and deactivated
// accounts receive a response indistinguishable from a successful send, so
// the endpoint cannot be used to enumerate login IDs. A locked account is
// the deliberate exception: the caller is told to contact the bank.
func (e *Engine) RequestPasswordReset(ctx context.Context, loginID string) (ResetRequestResult, error) {
	if !e.config.PasswordReset.Enabled {
		return ResetRequestResult{}, ErrFlowDisabled
	}

	decoy := ResetRequestResult{
		Outcome:          OtpOutcome{Status: OtpSent, ExpiresInSeconds: e.config.PasswordReset.DecoyExpirySeconds},
		MaskedEmail:      "***",
		ExpiresInSeconds: e.config.PasswordReset.DecoyExpirySeconds,
	}

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, loginID, "", err, nil)
			return decoy, nil
		}
		return ResetRequestResult{}, err
	}

	switch account.Status {
	case AccountLocked:
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, loginID, account.ID, ErrAccountLocked, nil)
		return ResetRequestResult{}, ErrAccountLocked
	case AccountDeactivated:
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, loginID, account.ID, ErrAccountDeactivated, nil)
		return decoy, nil
	}
	if !account.PasswordSet {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, loginID, account.ID, ErrPasswordNotSet, nil)
		return ResetRequestResult{}, ErrPasswordNotSet
	}

	outcome := e.otp.Send(ctx, account.Email, account.DisplayName(), e.config.PasswordReset.OtpPurpose)
	if outcome.Status == OtpRateLimited {
		e.metricInc(MetricRateLimitHit)
	}
	if outcome.Status == OtpSent {
		e.metricInc(MetricPasswordResetRequest)
	}
	e.emitAudit(ctx, auditEventPasswordResetRequest, outcome.Ok(), loginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"otp_status": outcome.Status.Code(),
		}
	})

	expiry := outcome.ExpiresInSeconds
	if expiry == 0 {
		expiry = e.config.PasswordReset.DecoyExpirySeconds
	}
	return ResetRequestResult{
		Outcome:          outcome,
		MaskedEmail:      MaskEmail(account.Email),
		ExpiresInSeconds: expiry,
	}, nil
}

// VerifyResetOtp checks the reset code and, on success, issues the
// single-use reset token that authorizes exactly one credential
// replacement. Unknown accounts look like a wrong code.
func (e *Engine) VerifyResetOtp(ctx context.Context, loginID, code string) (ResetVerifyResult, error) {
	if !e.config.PasswordReset.Enabled {
		return ResetVerifyResult{}, ErrFlowDisabled
	}

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetVerify, false, loginID, "", err, nil)
			return ResetVerifyResult{Outcome: OtpOutcome{Status: OtpInvalidCode}}, nil
		}
		return ResetVerifyResult{}, err
	}

	switch account.Status {
	case AccountLocked:
		e.emitAudit(ctx, auditEventPasswordResetVerify, false, loginID, account.ID, ErrAccountLocked, nil)
		return ResetVerifyResult{}, ErrAccountLocked
	case AccountDeactivated:
		e.emitAudit(ctx, auditEventPasswordResetVerify, false, loginID, account.ID, ErrAccountDeactivated, nil)
		return ResetVerifyResult{Outcome: OtpOutcome{Status: OtpInvalidCode}}, nil
	}

	outcome := e.otp.Verify(ctx, account.Email, code, e.config.PasswordReset.OtpPurpose)
	if outcome.Status != OtpVerified {
		e.emitAudit(ctx, auditEventPasswordResetVerify, false, loginID, account.ID, nil, func() map[string]string {
			return map[string]string{
				"otp_status": outcome.Status.Code(),
			}
		})
		return ResetVerifyResult{Outcome: outcome}, nil
	}

	token, err := e.resetTokens.Issue(ctx, account.LoginID, e.config.PasswordReset.TokenTTL)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetVerify, false, loginID, account.ID, ErrStoreUnavailable, nil)
		return ResetVerifyResult{}, ErrStoreUnavailable
	}

	e.metricInc(MetricPasswordResetTokenIssued)
	e.emitAudit(ctx, auditEventPasswordResetVerify, true, loginID, account.ID, nil, nil)

	return ResetVerifyResult{
		Outcome:          outcome,
		ResetToken:       token,
		ExpiresInSeconds: int(e.config.PasswordReset.TokenTTL.Seconds()),
	}, nil
}

// CompletePasswordReset redeems the token and replaces the credential at
// the provider. The token is consumed before anything else happens: a
// downstream rejection (weak history match, provider outage) does not
// restore it, so a front-run token can never be replayed.
func (e *Engine) CompletePasswordReset(ctx context.Context, loginID, token, newPassword string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrFlowDisabled
	}

	if err := e.resetTokens.Redeem(ctx, token, loginID); err != nil {
		reason := "not_found"
		switch {
		case errors.Is(err, stores.ErrTokenExpired):
			reason = "expired"
		case errors.Is(err, stores.ErrTokenSubjectMismatch):
			reason = "subject_mismatch"
		case errors.Is(err, stores.ErrTokenRedisUnavailable):
			e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, "", ErrStoreUnavailable, nil)
			return ErrStoreUnavailable
		}
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, "", ErrResetTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return ErrResetTokenInvalid
	}

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, "", err, nil)
		return err
	}

	switch account.Status {
	case AccountLocked:
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, account.ID, ErrAccountLocked, nil)
		return ErrAccountLocked
	case AccountDeactivated:
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, account.ID, ErrAccountDeactivated, nil)
		return ErrAccountDeactivated
	}

	if err := ValidatePassword(e.config.Password, newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, account.ID, err, nil)
		return err
	}
	if !account.Provisioned() {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, account.ID, ErrAccountNotProvisioned, nil)
		return ErrAccountNotProvisioned
	}

	if _, err := e.identity.CompleteOnboarding(ctx, account.ProviderUserID, account.Email, newPassword); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, loginID, account.ID, err, nil)

		var pe *ProviderError
		if errors.As(err, &pe) {
			return stripPasswordHistoryPrefix(pe)
		}
		return err
	}
	newPassword = ""

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetComplete, true, loginID, account.ID, nil, nil)

	return nil
}

// SendResetEmail triggers the provider-hosted reset email as an alternative
// to the OTP flow. Unknown accounts are swallowed for the same
// anti-enumeration reason as RequestPasswordReset.
func (e *Engine) SendResetEmail(ctx context.Context, email string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrFlowDisabled
	}

	account, err := e.lookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", err, nil)
			return nil
		}
		return err
	}
	if account.Status == AccountLocked {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, account.LoginID, account.ID, ErrAccountLocked, nil)
		return ErrAccountLocked
	}

	if err := e.identity.SendPasswordResetEmail(ctx, account.Email); err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, account.LoginID, account.ID, err, nil)
		return err
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.LoginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"channel": "provider_email",
		}
	})

	return nil
}

const passwordHistoryPrefix = "PasswordHistoryError: "

// stripPasswordHistoryPrefix removes the provider's internal error-class
// prefix so the caller sees only the human-readable sentence.
func stripPasswordHistoryPrefix(pe *ProviderError) *ProviderError {
	if strings.HasPrefix(pe.Description, passwordHistoryPrefix) {
		stripped := *pe
		stripped.Description = strings.TrimPrefix(pe.Description, passwordHistoryPrefix)
		return &stripped
	}
	return pe
}
