package authgate

import "context"

// OnboardingStatus defines a public type used by authgate APIs.
//
// OnboardingStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OnboardingStatus struct {
	LoginID       string
	Email         string
	MaskedEmail   string
	FirstName     string
	LastName      string
	Status        AccountStatus
	EmailVerified bool
	PasswordSet   bool
	MfaEnrolled   bool

	RequiresEmailVerification bool
	RequiresPasswordSetup     bool
	RequiresMfaEnrollment     bool
}

// OtpSendResult defines a public type used by authgate APIs.
//
// OtpSendResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OtpSendResult struct {
	Outcome     OtpOutcome
	MaskedEmail string
}

// VerifyEmailResult defines a public type used by authgate APIs.
//
// VerifyEmailResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerifyEmailResult struct {
	Outcome               OtpOutcome
	RequiresPasswordSetup bool
	RequiresMfaEnrollment bool
}

// EstablishPasswordResult defines a public type used by authgate APIs.
//
// EstablishPasswordResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EstablishPasswordResult struct {
	MFARequired bool
	MFAToken    string
}

func onboardingStatus(account *UserAccount) OnboardingStatus {
	return OnboardingStatus{
		LoginID:       account.LoginID,
		Email:         account.Email,
		MaskedEmail:   MaskEmail(account.Email),
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		Status:        account.Status,
		EmailVerified: account.EmailVerified,
		PasswordSet:   account.PasswordSet,
		MfaEnrolled:   account.MfaEnrolled,

		RequiresEmailVerification: !account.EmailVerified,
		RequiresPasswordSetup:     account.EmailVerified && !account.PasswordSet,
		RequiresMfaEnrollment:     account.EmailVerified && account.PasswordSet && !account.MfaEnrolled,
	}
}

// CheckOnboarding reports which first-time-registration steps remain for the
// account. Locked and deactivated accounts are rejected outright so the
// caller never walks a dead flow.
func (e *Engine) CheckOnboarding(ctx context.Context, loginID string) (OnboardingStatus, error) {
	if !e.config.Onboarding.Enabled {
		return OnboardingStatus{}, ErrFlowDisabled
	}

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		e.emitAudit(ctx, auditEventOnboardingCheck, false, loginID, "", err, nil)
		return OnboardingStatus{}, err
	}
	if err := onboardingGuard(account); err != nil {
		e.emitAudit(ctx, auditEventOnboardingCheck, false, loginID, account.ID, err, nil)
		return OnboardingStatus{}, err
	}

	return onboardingStatus(account), nil
}

// SendVerificationOtp dispatches an email-ownership code for the first
// onboarding step. Accounts whose email is already verified are refused.
func (e *Engine) SendVerificationOtp(ctx context.Context, loginID string) (OtpSendResult, error) {
	if !e.config.Onboarding.Enabled {
		return OtpSendResult{}, ErrFlowDisabled
	}

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		e.emitAudit(ctx, auditEventOnboardingOtpSent, false, loginID, "", err, nil)
		return OtpSendResult{}, err
	}
	if err := onboardingGuard(account); err != nil {
		e.emitAudit(ctx, auditEventOnboardingOtpSent, false, loginID, account.ID, err, nil)
		return OtpSendResult{}, err
	}
	if account.EmailVerified {
		e.emitAudit(ctx, auditEventOnboardingOtpSent, false, loginID, account.ID, ErrEmailAlreadyVerified, nil)
		return OtpSendResult{}, ErrEmailAlreadyVerified
	}

	outcome := e.otp.Send(ctx, account.Email, account.DisplayName(), e.config.Onboarding.OtpPurpose)
	if outcome.Status == OtpRateLimited {
		e.metricInc(MetricRateLimitHit)
	}
	if outcome.Status == OtpSent {
		e.metricInc(MetricOnboardingOtpSent)
	}
	e.emitAudit(ctx, auditEventOnboardingOtpSent, outcome.Ok(), loginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"otp_status": outcome.Status.Code(),
		}
	})

	return OtpSendResult{
		Outcome:     outcome,
		MaskedEmail: MaskEmail(account.Email),
	}, nil
}

// VerifyEmailOtp checks the onboarding code and, on success, flips the
// account's email-verified flag under the per-account lock.
func (e *Engine) VerifyEmailOtp(ctx context.Context, loginID, code string) (VerifyEmailResult, error) {
	if !e.config.Onboarding.Enabled {
		return VerifyEmailResult{}, ErrFlowDisabled
	}

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		e.emitAudit(ctx, auditEventOnboardingOtpVerified, false, loginID, "", err, nil)
		return VerifyEmailResult{}, err
	}
	if err := onboardingGuard(account); err != nil {
		e.emitAudit(ctx, auditEventOnboardingOtpVerified, false, loginID, account.ID, err, nil)
		return VerifyEmailResult{}, err
	}
	if account.EmailVerified {
		return VerifyEmailResult{
			Outcome:               OtpOutcome{Status: OtpAlreadyVerified},
			RequiresPasswordSetup: !account.PasswordSet,
			RequiresMfaEnrollment: account.PasswordSet && !account.MfaEnrolled,
		}, nil
	}

	outcome := e.otp.Verify(ctx, account.Email, code, e.config.Onboarding.OtpPurpose)
	if outcome.Status != OtpVerified {
		e.emitAudit(ctx, auditEventOnboardingOtpVerified, false, loginID, account.ID, nil, func() map[string]string {
			return map[string]string{
				"otp_status": outcome.Status.Code(),
			}
		})
		return VerifyEmailResult{Outcome: outcome}, nil
	}

	account, err = e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		a.MarkEmailVerified()
		return nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventOnboardingOtpVerified, false, loginID, "", err, nil)
		return VerifyEmailResult{}, err
	}

	e.metricInc(MetricOnboardingOtpVerified)
	e.emitAudit(ctx, auditEventOnboardingOtpVerified, true, loginID, account.ID, nil, nil)

	return VerifyEmailResult{
		Outcome:               outcome,
		RequiresPasswordSetup: !account.PasswordSet,
		RequiresMfaEnrollment: account.PasswordSet && !account.MfaEnrolled,
	}, nil
}

// EstablishPassword sets the first credential for a verified account. The
// provider performs the write and immediately reauthenticates, usually
// returning an MFA challenge token for the enrollment step that follows.
func (e *Engine) EstablishPassword(ctx context.Context, loginID, password string) (EstablishPasswordResult, error) {
	if !e.config.Onboarding.Enabled {
		return EstablishPasswordResult{}, ErrFlowDisabled
	}

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, "", err, nil)
		return EstablishPasswordResult{}, err
	}
	if err := onboardingGuard(account); err != nil {
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, account.ID, err, nil)
		return EstablishPasswordResult{}, err
	}
	switch {
	case !account.EmailVerified:
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, account.ID, ErrEmailNotVerified, nil)
		return EstablishPasswordResult{}, ErrEmailNotVerified
	case account.PasswordSet:
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, account.ID, ErrPasswordAlreadySet, nil)
		return EstablishPasswordResult{}, ErrPasswordAlreadySet
	case !account.Provisioned():
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, account.ID, ErrAccountNotProvisioned, nil)
		return EstablishPasswordResult{}, ErrAccountNotProvisioned
	}

	if err := ValidatePassword(e.config.Password, password); err != nil {
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, account.ID, err, nil)
		return EstablishPasswordResult{}, err
	}

	result, err := e.identity.CompleteOnboarding(ctx, account.ProviderUserID, account.Email, password)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, account.ID, err, nil)
		return EstablishPasswordResult{}, err
	}
	password = ""

	if _, err := e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		a.MarkPasswordEstablished()
		return nil
	}); err != nil {
		e.emitAudit(ctx, auditEventOnboardingPasswordSet, false, loginID, account.ID, err, nil)
		return EstablishPasswordResult{}, err
	}

	e.metricInc(MetricOnboardingPasswordSet)
	e.emitAudit(ctx, auditEventOnboardingPasswordSet, true, loginID, account.ID, nil, nil)

	return EstablishPasswordResult{
		MFARequired: result.MFARequired,
		MFAToken:    result.MFAToken,
	}, nil
}

// CompleteOnboarding finalizes registration. A true mfaEnrolled hint flips
// the last flag; activation then requires all three. The provider-side
// completion stamp is best-effort and never rolls back a local activation.
func (e *Engine) CompleteOnboarding(ctx context.Context, loginID string, mfaEnrolled bool) (OnboardingStatus, error) {
	if !e.config.Onboarding.Enabled {
		return OnboardingStatus{}, ErrFlowDisabled
	}

	account, err := e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		if err := onboardingGuard(a); err != nil {
			return err
		}
		if !a.EmailVerified {
			return ErrEmailNotVerified
		}
		if !a.PasswordSet {
			return ErrPasswordNotSet
		}
		if mfaEnrolled {
			a.MarkMfaEnrolled()
		}
		return a.Activate()
	})
	if err != nil {
		e.emitAudit(ctx, auditEventOnboardingCompleted, false, loginID, "", err, nil)
		return OnboardingStatus{}, err
	}

	providerStamp := "skipped"
	if account.Provisioned() {
		if err := e.identity.MarkOnboardingComplete(ctx, account.ProviderUserID); err != nil {
			providerStamp = "failed"
			e.metricInc(MetricProviderFailure)
		} else {
			providerStamp = "ok"
		}
	}

	e.metricInc(MetricOnboardingCompleted)
	e.metricInc(MetricAccountActivated)
	e.emitAudit(ctx, auditEventOnboardingCompleted, true, loginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"provider_stamp": providerStamp,
		}
	})

	return onboardingStatus(account), nil
}

// onboardingGuard rejects accounts that must not progress through
// first-time registration.
func onboardingGuard(account *UserAccount) error {
	switch account.Status {
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeactivated:
		return ErrAccountDeactivated
	}
	return nil
}
