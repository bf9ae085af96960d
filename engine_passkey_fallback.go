package authgate

import (
	"context"
	"errors"

	"github.com/obsidianbank/authgate/internal/stores"
)

// PasskeyFallbackResult defines a public type used by authgate APIs.
//
// PasskeyFallbackResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasskeyFallbackResult struct {
	Outcome          OtpOutcome
	FallbackToken    string
	ExpiresInSeconds int
}

// PasskeyFallbackSendOtp starts the escape hatch for a passkey user whose
// device is unavailable. The account must actually have a passkey and an
// established password, otherwise there is nothing to fall back from or to.
func (e *Engine) PasskeyFallbackSendOtp(ctx context.Context, email string) (OtpSendResult, error) {
	if !e.config.PasskeyFallback.Enabled {
		return OtpSendResult{}, ErrFlowDisabled
	}

	account, err := e.passkeyFallbackAccount(ctx, email)
	if err != nil {
		e.emitAudit(ctx, auditEventPasskeyFallbackRequest, false, "", "", err, nil)
		return OtpSendResult{}, err
	}

	outcome := e.otp.Send(ctx, account.Email, account.DisplayName(), e.config.PasskeyFallback.OtpPurpose)
	if outcome.Status == OtpRateLimited {
		e.metricInc(MetricRateLimitHit)
	}
	e.emitAudit(ctx, auditEventPasskeyFallbackRequest, outcome.Ok(), account.LoginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"otp_status": outcome.Status.Code(),
		}
	})

	return OtpSendResult{
		Outcome:     outcome,
		MaskedEmail: MaskEmail(account.Email),
	}, nil
}

// PasskeyFallbackVerify checks the code and, on success, issues the
// short-lived single-use marker that authorizes one password login.
func (e *Engine) PasskeyFallbackVerify(ctx context.Context, email, code string) (PasskeyFallbackResult, error) {
	if !e.config.PasskeyFallback.Enabled {
		return PasskeyFallbackResult{}, ErrFlowDisabled
	}

	account, err := e.passkeyFallbackAccount(ctx, email)
	if err != nil {
		e.emitAudit(ctx, auditEventPasskeyFallbackIssued, false, "", "", err, nil)
		return PasskeyFallbackResult{}, err
	}

	outcome := e.otp.Verify(ctx, account.Email, code, e.config.PasskeyFallback.OtpPurpose)
	if outcome.Status != OtpVerified {
		e.emitAudit(ctx, auditEventPasskeyFallbackIssued, false, account.LoginID, account.ID, nil, func() map[string]string {
			return map[string]string{
				"otp_status": outcome.Status.Code(),
			}
		})
		return PasskeyFallbackResult{Outcome: outcome}, nil
	}

	marker, err := e.fallbackMarkers.Issue(ctx, account.LoginID, e.config.PasskeyFallback.MarkerTTL)
	if err != nil {
		e.emitAudit(ctx, auditEventPasskeyFallbackIssued, false, account.LoginID, account.ID, ErrStoreUnavailable, nil)
		return PasskeyFallbackResult{}, ErrStoreUnavailable
	}

	e.metricInc(MetricPasskeyFallbackIssued)
	e.emitAudit(ctx, auditEventPasskeyFallbackIssued, true, account.LoginID, account.ID, nil, nil)

	return PasskeyFallbackResult{
		Outcome:          outcome,
		FallbackToken:    marker,
		ExpiresInSeconds: int(e.config.PasskeyFallback.MarkerTTL.Seconds()),
	}, nil
}

// ConsumeFallbackMarker redeems the marker during a password login. Each
// marker authorizes exactly one login; a marker presented for a different
// login ID is rejected without being consumed.
func (e *Engine) ConsumeFallbackMarker(ctx context.Context, loginID, marker string) error {
	if !e.config.PasskeyFallback.Enabled {
		return ErrFlowDisabled
	}

	if err := e.fallbackMarkers.Redeem(ctx, marker, loginID); err != nil {
		if errors.Is(err, stores.ErrTokenRedisUnavailable) {
			e.emitAudit(ctx, auditEventPasskeyFallbackUsed, false, loginID, "", ErrStoreUnavailable, nil)
			return ErrStoreUnavailable
		}
		e.emitAudit(ctx, auditEventPasskeyFallbackUsed, false, loginID, "", ErrFallbackMarkerInvalid, nil)
		return ErrFallbackMarkerInvalid
	}

	e.metricInc(MetricPasskeyFallbackConsumed)
	e.emitAudit(ctx, auditEventPasskeyFallbackUsed, true, loginID, "", nil, nil)

	return nil
}

func (e *Engine) passkeyFallbackAccount(ctx context.Context, email string) (*UserAccount, error) {
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
	if !account.PasskeyEnrolled {
		return nil, ErrNoPasskeyEnrollment
	}
	if !account.PasswordSet {
		return nil, ErrPasswordNotSet
	}
	return account, nil
}
