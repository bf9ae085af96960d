package authgate

import (
	"context"
	"strconv"
)

// GuardianResetResult defines a public type used by authgate APIs.
//
// GuardianResetResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GuardianResetResult struct {
	Outcome      OtpOutcome
	DeletedCount int
}

// GuardianSendOtp starts the push-authenticator reset for a user who lost
// their MFA device. The flow addresses accounts by email and requires at
// least one confirmed push authenticator to exist before a code goes out.
func (e *Engine) GuardianSendOtp(ctx context.Context, email string) (OtpSendResult, error) {
	if !e.config.GuardianReset.Enabled {
		return OtpSendResult{}, ErrFlowDisabled
	}

	account, err := e.guardianAccount(ctx, email)
	if err != nil {
		e.emitAudit(ctx, auditEventGuardianResetRequest, false, "", "", err, nil)
		return OtpSendResult{}, err
	}

	if _, err := e.confirmedPushAuthenticators(ctx, account); err != nil {
		e.emitAudit(ctx, auditEventGuardianResetRequest, false, account.LoginID, account.ID, err, nil)
		return OtpSendResult{}, err
	}

	outcome := e.otp.Send(ctx, account.Email, account.DisplayName(), e.config.GuardianReset.OtpPurpose)
	if outcome.Status == OtpRateLimited {
		e.metricInc(MetricRateLimitHit)
	}
	if outcome.Status == OtpSent {
		e.metricInc(MetricGuardianResetRequest)
	}
	e.emitAudit(ctx, auditEventGuardianResetRequest, outcome.Ok(), account.LoginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"otp_status": outcome.Status.Code(),
		}
	})

	return OtpSendResult{
		Outcome:     outcome,
		MaskedEmail: MaskEmail(account.Email),
	}, nil
}

// GuardianVerifyAndReset checks the code and, on success, removes every
// confirmed push authenticator from the provider. Removal is best-effort
// per authenticator: a partial failure still counts what was deleted, but
// removing none at all is a failure despite the verified code.
func (e *Engine) GuardianVerifyAndReset(ctx context.Context, email, code string) (GuardianResetResult, error) {
	if !e.config.GuardianReset.Enabled {
		return GuardianResetResult{}, ErrFlowDisabled
	}

	account, err := e.guardianAccount(ctx, email)
	if err != nil {
		e.emitAudit(ctx, auditEventGuardianResetComplete, false, "", "", err, nil)
		return GuardianResetResult{}, err
	}

	outcome := e.otp.Verify(ctx, account.Email, code, e.config.GuardianReset.OtpPurpose)
	if outcome.Status != OtpVerified {
		e.emitAudit(ctx, auditEventGuardianResetComplete, false, account.LoginID, account.ID, nil, func() map[string]string {
			return map[string]string{
				"otp_status": outcome.Status.Code(),
			}
		})
		return GuardianResetResult{Outcome: outcome}, nil
	}

	push, err := e.confirmedPushAuthenticators(ctx, account)
	if err != nil {
		e.emitAudit(ctx, auditEventGuardianResetComplete, false, account.LoginID, account.ID, err, nil)
		return GuardianResetResult{}, err
	}

	deleted := 0
	failed := 0
	for _, a := range push {
		if a.ID == "" {
			continue
		}
		if err := e.identity.DeleteAuthenticator(ctx, account.ProviderUserID, a.ID); err != nil {
			failed++
			continue
		}
		deleted++
	}

	if deleted == 0 {
		e.metricInc(MetricGuardianResetFailure)
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventGuardianResetComplete, false, account.LoginID, account.ID, ErrGuardianResetFailed, func() map[string]string {
			return map[string]string{
				"failed_count": strconv.Itoa(failed),
			}
		})
		return GuardianResetResult{Outcome: outcome}, ErrGuardianResetFailed
	}

	if _, err := e.mutateAccount(ctx, account.LoginID, func(a *UserAccount) error {
		a.ClearMfaEnrolled()
		return nil
	}); err != nil {
		e.emitAudit(ctx, auditEventGuardianResetComplete, false, account.LoginID, account.ID, err, nil)
		return GuardianResetResult{}, err
	}

	e.metricInc(MetricGuardianResetSuccess)
	e.emitAudit(ctx, auditEventGuardianResetComplete, true, account.LoginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"deleted_count": strconv.Itoa(deleted),
			"failed_count":  strconv.Itoa(failed),
		}
	})

	return GuardianResetResult{
		Outcome:      outcome,
		DeletedCount: deleted,
	}, nil
}

func (e *Engine) guardianAccount(ctx context.Context, email string) (*UserAccount, error) {
	account, err := e.lookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	switch account.Status {
	case AccountLocked:
		return nil, ErrAccountLocked
	case AccountDeactivated:
		return nil, ErrAccountDeactivated
	}
	if !account.Provisioned() {
		return nil, ErrAccountNotProvisioned
	}
	return account, nil
}

func (e *Engine) confirmedPushAuthenticators(ctx context.Context, account *UserAccount) ([]Authenticator, error) {
	all, err := e.identity.ListAuthenticators(ctx, account.ProviderUserID)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		return nil, ErrIdentityProviderUnavailable
	}

	var push []Authenticator
	for _, a := range all {
		if a.Type == AuthenticatorTypePush && a.Confirmed {
			push = append(push, a)
		}
	}
	if len(push) == 0 {
		return nil, ErrNoGuardianEnrollment
	}
	return push, nil
}
