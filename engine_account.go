package authgate

import (
	"context"
	"errors"
)

// RegisterAccount creates the account of record for a new user. The account
// starts in pending verification; onboarding moves it to active. The
// existence check and the save hold the per-login lock, so two concurrent
// registrations of the same login ID resolve to one winner.
func (e *Engine) RegisterAccount(ctx context.Context, loginID, email, firstName, lastName string) (*UserAccount, error) {
	unlock := e.accountLocks.lock(loginID)
	defer unlock()

	if _, err := e.lookupByLoginID(ctx, loginID); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventAccountProvisioned, false, loginID, "", err, nil)
		return nil, err
	}

	account := NewUserAccount(loginID, email, firstName, lastName, actorFromContext(ctx))
	if err := e.directory.Save(ctx, account); err != nil {
		e.emitAudit(ctx, auditEventAccountProvisioned, false, loginID, "", err, nil)
		return nil, err
	}

	e.emitAudit(ctx, auditEventAccountProvisioned, true, loginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"stage": "registered",
		}
	})

	return account, nil
}

// ProvisionAccount links the account of record to its identity provider user.
// The link is write-once unless force is set.
func (e *Engine) ProvisionAccount(ctx context.Context, loginID, providerUserID string, force bool) (*UserAccount, error) {
	account, err := e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		if force {
			a.Reprovision(providerUserID)
			return nil
		}
		return a.Provision(providerUserID)
	})
	if err != nil {
		e.emitAudit(ctx, auditEventAccountProvisioned, false, loginID, "", err, nil)
		return nil, err
	}

	e.emitAudit(ctx, auditEventAccountProvisioned, true, loginID, account.ID, nil, nil)

	return account, nil
}

// ActivateAccount moves a fully onboarded account to active. With force set
// the onboarding checks are skipped; locked and deactivated accounts are
// refused either way.
func (e *Engine) ActivateAccount(ctx context.Context, loginID string, force bool) (*UserAccount, error) {
	account, err := e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		if force {
			return a.ForceActivate()
		}
		return a.Activate()
	})
	if err != nil {
		e.emitAudit(ctx, auditEventAccountActivated, false, loginID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricAccountActivated)
	e.emitAudit(ctx, auditEventAccountActivated, true, loginID, account.ID, nil, nil)

	return account, nil
}

// LockAccount locks the account with the given lock type. Relocking with the
// same type is a no-op; replacing a different type requires force.
func (e *Engine) LockAccount(ctx context.Context, loginID string, lockType LockType, force bool) (*UserAccount, error) {
	account, err := e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		if force {
			return a.ForceLock(lockType)
		}
		return a.Lock(lockType)
	})
	if err != nil {
		e.emitAudit(ctx, auditEventAccountLocked, false, loginID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricAccountLocked)
	e.emitAudit(ctx, auditEventAccountLocked, true, loginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"lock_type": lockType.String(),
		}
	})

	return account, nil
}

// UnlockAccount releases a lock, returning the account to active or pending
// verification depending on its onboarding flags.
func (e *Engine) UnlockAccount(ctx context.Context, loginID string) (*UserAccount, error) {
	account, err := e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		return a.Unlock()
	})
	if err != nil {
		e.emitAudit(ctx, auditEventAccountUnlocked, false, loginID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditEventAccountUnlocked, true, loginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"status": account.Status.String(),
		}
	})

	return account, nil
}

// DeactivateAccount permanently retires the account. Deactivation is terminal
// and idempotent; repeating it succeeds without changing anything.
func (e *Engine) DeactivateAccount(ctx context.Context, loginID, reason string) (*UserAccount, error) {
	account, err := e.mutateAccount(ctx, loginID, func(a *UserAccount) error {
		a.Deactivate(reason)
		return nil
	})
	if err != nil {
		e.emitAudit(ctx, auditEventAccountDeactivated, false, loginID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricAccountDeactivated)
	e.emitAudit(ctx, auditEventAccountDeactivated, true, loginID, account.ID, nil, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})

	return account, nil
}

// GetAccount returns the account of record for inspection.
func (e *Engine) GetAccount(ctx context.Context, loginID string) (*UserAccount, error) {
	return e.lookupByLoginID(ctx, loginID)
}
