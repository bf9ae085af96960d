package authgate

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus defines a public type used by authgate APIs.
//
// AccountStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountStatus uint8

const (
	// AccountPendingVerification is an exported constant or variable used by the identity gateway engine.
	AccountPendingVerification AccountStatus = iota
	// AccountActive is an exported constant or variable used by the identity gateway engine.
	AccountActive
	// AccountLocked is an exported constant or variable used by the identity gateway engine.
	AccountLocked
	// AccountDeactivated is an exported constant or variable used by the identity gateway engine.
	AccountDeactivated
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s AccountStatus) String() string {
	switch s {
	case AccountPendingVerification:
		return "pending_verification"
	case AccountActive:
		return "active"
	case AccountLocked:
		return "locked"
	case AccountDeactivated:
		return "deactivated"
	}
	return "unknown"
}

// LockType defines a public type used by authgate APIs.
//
// LockType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockType uint8

const (
	// LockNone is an exported constant or variable used by the identity gateway engine.
	LockNone LockType = iota
	// LockByBank is an exported constant or variable used by the identity gateway engine.
	LockByBank
	// LockBySelf is an exported constant or variable used by the identity gateway engine.
	LockBySelf
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t LockType) String() string {
	switch t {
	case LockByBank:
		return "bank"
	case LockBySelf:
		return "self"
	}
	return "none"
}

// UserAccount is the account of record for one banking user. Status, lock
// state, and the three onboarding flags move only through the methods below;
// the engine serializes mutations per login ID before calling Save.
//
// Invariant: LockType != LockNone exactly when Status == AccountLocked.
type UserAccount struct {
	ID             string
	LoginID        string
	Email          string
	FirstName      string
	LastName       string
	UserType       string
	ProviderKind   string
	ProviderUserID string
	Roles          []string

	EmailVerified bool
	PasswordSet   bool
	MfaEnrolled   bool

	PasskeyEnrolled bool

	Status             AccountStatus
	LockType           LockType
	DeactivationReason string

	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
}

// NewUserAccount describes the newuseraccount operation and its observable behavior.
//
// NewUserAccount may return an error when input validation, dependency calls, or security checks fail.
// NewUserAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewUserAccount(loginID, email, firstName, lastName, createdBy string) *UserAccount {
	now := time.Now().UTC()
	return &UserAccount{
		ID:        uuid.NewString(),
		LoginID:   loginID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		UserType:  "customer",
		Status:    AccountPendingVerification,
		LockType:  LockNone,
		CreatedAt: now,
		CreatedBy: createdBy,
		UpdatedAt: now,
	}
}

// DisplayName describes the displayname operation and its observable behavior.
//
// DisplayName does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *UserAccount) DisplayName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Provisioned reports whether the account is linked to an identity provider user.
func (a *UserAccount) Provisioned() bool {
	return a.ProviderUserID != ""
}

// OnboardingComplete reports whether all three onboarding flags are set.
func (a *UserAccount) OnboardingComplete() bool {
	return a.EmailVerified && a.PasswordSet && a.MfaEnrolled
}

// Provision links the account to its identity provider user. The link is
// write-once; relinking requires an explicit Reprovision.
func (a *UserAccount) Provision(providerUserID string) error {
	if a.Provisioned() {
		return ErrAlreadyProvisioned
	}
	a.ProviderUserID = providerUserID
	a.touch()
	return nil
}

// Reprovision replaces the identity provider link. Used only by operator
// tooling after a provider-side account was rebuilt.
func (a *UserAccount) Reprovision(providerUserID string) {
	a.ProviderUserID = providerUserID
	a.touch()
}

// MarkEmailVerified describes the markemailverified operation and its observable behavior.
//
// MarkEmailVerified may return an error when input validation, dependency calls, or security checks fail.
func (a *UserAccount) MarkEmailVerified() {
	a.EmailVerified = true
	a.touch()
}

// MarkPasswordEstablished describes the markpasswordestablished operation and its observable behavior.
//
// MarkPasswordEstablished may return an error when input validation, dependency calls, or security checks fail.
func (a *UserAccount) MarkPasswordEstablished() {
	a.PasswordSet = true
	a.touch()
}

// MarkMfaEnrolled describes the markmfaenrolled operation and its observable behavior.
//
// MarkMfaEnrolled may return an error when input validation, dependency calls, or security checks fail.
func (a *UserAccount) MarkMfaEnrolled() {
	a.MfaEnrolled = true
	a.touch()
}

// ClearMfaEnrolled drops the enrollment flag after a Guardian reset removed
// all push authenticators. The account re-enrolls on next login.
func (a *UserAccount) ClearMfaEnrolled() {
	a.MfaEnrolled = false
	a.touch()
}

// MarkPasskeyEnrolled describes the markpasskeyenrolled operation and its observable behavior.
//
// MarkPasskeyEnrolled may return an error when input validation, dependency calls, or security checks fail.
func (a *UserAccount) MarkPasskeyEnrolled() {
	a.PasskeyEnrolled = true
	a.touch()
}

// Activate transitions to AccountActive once every onboarding flag is set.
// Activating an already-active account is a no-op. Locked accounts must be
// unlocked first; deactivation is terminal.
func (a *UserAccount) Activate() error {
	switch a.Status {
	case AccountActive:
		return nil
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeactivated:
		return ErrAccountDeactivated
	}
	if !a.OnboardingComplete() {
		return ErrOnboardingIncomplete
	}
	a.Status = AccountActive
	a.touch()
	return nil
}

// ForceActivate is the administrative override: it activates regardless of
// onboarding flags but still refuses locked and deactivated accounts.
func (a *UserAccount) ForceActivate() error {
	switch a.Status {
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeactivated:
		return ErrAccountDeactivated
	}
	a.Status = AccountActive
	a.touch()
	return nil
}

// Lock transitions to AccountLocked with the given lock type. Locking again
// with the same type is a no-op; a different type is a conflict and needs
// ForceLock.
func (a *UserAccount) Lock(t LockType) error {
	if t == LockNone {
		return ErrLockConflict
	}
	if a.Status == AccountDeactivated {
		return ErrAccountDeactivated
	}
	if a.Status == AccountLocked {
		if a.LockType == t {
			return nil
		}
		return ErrLockConflict
	}
	a.Status = AccountLocked
	a.LockType = t
	a.touch()
	return nil
}

// ForceLock replaces an existing lock type without requiring an unlock first.
func (a *UserAccount) ForceLock(t LockType) error {
	if t == LockNone {
		return ErrLockConflict
	}
	if a.Status == AccountDeactivated {
		return ErrAccountDeactivated
	}
	a.Status = AccountLocked
	a.LockType = t
	a.touch()
	return nil
}

// Unlock returns a locked account to its pre-lock state: active when
// onboarding completed, otherwise back to pending verification. Unlocking
// an account that is not locked is a conflict, not a no-op.
func (a *UserAccount) Unlock() error {
	if a.Status != AccountLocked {
		return ErrAccountNotLocked
	}
	a.LockType = LockNone
	if a.OnboardingComplete() {
		a.Status = AccountActive
	} else {
		a.Status = AccountPendingVerification
	}
	a.touch()
	return nil
}

// Deactivate is terminal and idempotent.
func (a *UserAccount) Deactivate(reason string) {
	if a.Status == AccountDeactivated {
		return
	}
	a.Status = AccountDeactivated
	a.LockType = LockNone
	a.DeactivationReason = reason
	a.touch()
}

func (a *UserAccount) touch() {
	a.UpdatedAt = time.Now().UTC()
}
