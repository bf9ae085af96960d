package authgate

import "context"

// MfaVerifyResult defines a public type used by authgate APIs.
//
// MfaVerifyResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MfaVerifyResult struct {
	Status PushApprovalStatus
	// Grant is set only when Status is PushApproved.
	Grant *MFATokenGrant
}

// ListMfaEnrollments returns the authenticators enrolled under the MFA
// challenge token's user.
func (e *Engine) ListMfaEnrollments(ctx context.Context, mfaToken string) ([]Authenticator, error) {
	enrollments, err := e.identity.MFAEnrollments(ctx, mfaToken)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		return nil, err
	}
	return enrollments, nil
}

// StartMfaEnrollment begins enrolling a new authenticator of the given type
// and returns the provider's association material (TOTP secret and barcode
// URI, or the out-of-band code for push).
func (e *Engine) StartMfaEnrollment(ctx context.Context, mfaToken, authenticatorType string) (MFAAssociation, error) {
	association, err := e.identity.MFAAssociate(ctx, mfaToken, authenticatorType)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventMFAEnrollmentStarted, false, "", "", err, nil)
		return MFAAssociation{}, err
	}

	e.metricInc(MetricMFAEnrollmentStarted)
	e.emitAudit(ctx, auditEventMFAEnrollmentStarted, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"authenticator_type": authenticatorType,
		}
	})

	return association, nil
}

// ConfirmMfaEnrollment completes a code-based enrollment (TOTP) by
// submitting the first code from the new authenticator.
func (e *Engine) ConfirmMfaEnrollment(ctx context.Context, mfaToken, code string) (MfaVerifyResult, error) {
	status, grant, err := e.identity.MFAVerify(ctx, mfaToken, code)
	return e.finishMfaConfirm(ctx, status, grant, err)
}

// PollMfaEnrollment completes a push enrollment by polling the out-of-band
// challenge until the user confirms in their authenticator app.
func (e *Engine) PollMfaEnrollment(ctx context.Context, mfaToken, oobCode string) (MfaVerifyResult, error) {
	status, grant, err := e.identity.MFAChallenge(ctx, mfaToken, oobCode)
	return e.finishMfaConfirm(ctx, status, grant, err)
}

// SendMfaChallenge triggers a login-time challenge against one specific
// enrolled authenticator.
func (e *Engine) SendMfaChallenge(ctx context.Context, mfaToken, authenticatorID, challengeType string) (MFAChallengeInfo, error) {
	info, err := e.identity.MFASendChallenge(ctx, mfaToken, authenticatorID, challengeType)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventMFAChallengeSent, false, "", "", err, nil)
		return MFAChallengeInfo{}, err
	}

	e.emitAudit(ctx, auditEventMFAChallengeSent, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"challenge_type": info.ChallengeType,
		}
	})

	return info, nil
}

// VerifyMfaChallenge completes a login-time challenge with the code the
// user received or generated.
func (e *Engine) VerifyMfaChallenge(ctx context.Context, mfaToken, code, oobCode string) (MfaVerifyResult, error) {
	status, grant, err := e.identity.MFAVerifyChallenge(ctx, mfaToken, code, oobCode)
	return e.finishMfaConfirm(ctx, status, grant, err)
}

func (e *Engine) finishMfaConfirm(ctx context.Context, status PushApprovalStatus, grant *MFATokenGrant, err error) (MfaVerifyResult, error) {
	if err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventMFAEnrollmentConfirmed, false, "", "", err, nil)
		return MfaVerifyResult{Status: PushError}, err
	}

	if status == PushApproved {
		e.metricInc(MetricMFAEnrollmentConfirmed)
	}
	e.emitAudit(ctx, auditEventMFAEnrollmentConfirmed, status == PushApproved, "", "", nil, func() map[string]string {
		return map[string]string{
			"push_status": status.Code(),
		}
	})

	return MfaVerifyResult{
		Status: status,
		Grant:  grant,
	}, nil
}
