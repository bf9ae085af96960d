package authgate

import "context"

// StepUpPollResult defines a public type used by authgate APIs.
//
// StepUpPollResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StepUpPollResult struct {
	Status PushApprovalStatus
	// Grant is set only when Status is PushApproved.
	Grant *MFATokenGrant
}

// StepUpStart dispatches a push approval request for a sensitive operation
// and returns the code used to poll for the user's decision.
func (e *Engine) StepUpStart(ctx context.Context, mfaToken, message string) (string, error) {
	if !e.config.StepUp.Enabled {
		return "", ErrFlowDisabled
	}
	if message == "" {
		message = e.config.StepUp.DefaultMessage
	}

	oobCode, err := e.identity.StepUpStart(ctx, mfaToken, message)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventStepUpStarted, false, "", "", err, nil)
		return "", err
	}

	e.metricInc(MetricStepUpStarted)
	e.emitAudit(ctx, auditEventStepUpStarted, true, "", "", nil, nil)

	return oobCode, nil
}

// StepUpPoll reports the current state of a pending push approval. Terminal
// states are stable: polling an approved, rejected, or expired challenge
// again returns the same status rather than an error.
func (e *Engine) StepUpPoll(ctx context.Context, mfaToken, oobCode string) (StepUpPollResult, error) {
	if !e.config.StepUp.Enabled {
		return StepUpPollResult{}, ErrFlowDisabled
	}

	status, grant, err := e.identity.StepUpVerify(ctx, mfaToken, oobCode)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventStepUpPolled, false, "", "", err, nil)
		return StepUpPollResult{Status: PushError}, err
	}

	switch status {
	case PushApproved:
		e.metricInc(MetricStepUpApproved)
	case PushRejected:
		e.metricInc(MetricStepUpRejected)
	}
	e.emitAudit(ctx, auditEventStepUpPolled, status == PushApproved, "", "", nil, func() map[string]string {
		return map[string]string{
			"push_status": status.Code(),
		}
	})

	return StepUpPollResult{
		Status: status,
		Grant:  grant,
	}, nil
}

// StepUpRefreshToken re-proves the first factor to obtain a fresh MFA
// challenge token when the previous one expired mid-flow. A login that does
// not trigger an MFA challenge is an error here, not a success.
func (e *Engine) StepUpRefreshToken(ctx context.Context, email, password string) (ReauthResult, error) {
	if !e.config.StepUp.Enabled {
		return ReauthResult{}, ErrFlowDisabled
	}

	result, err := e.identity.Reauthenticate(ctx, email, password)
	if err != nil {
		e.metricInc(MetricProviderFailure)
		e.emitAudit(ctx, auditEventStepUpTokenRefreshed, false, "", "", err, nil)
		return ReauthResult{}, err
	}
	password = ""

	if !result.MFARequired {
		e.emitAudit(ctx, auditEventStepUpTokenRefreshed, false, "", "", ErrMFANotRequired, nil)
		return ReauthResult{}, ErrMFANotRequired
	}

	e.emitAudit(ctx, auditEventStepUpTokenRefreshed, true, "", "", nil, nil)

	return result, nil
}
