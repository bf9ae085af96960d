package authgate

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type memoryDirectory struct {
	mu      sync.Mutex
	byLogin map[string]*UserAccount
	byEmail map[string]string
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		byLogin: make(map[string]*UserAccount),
		byEmail: make(map[string]string),
	}
}

func (d *memoryDirectory) FindByLoginID(_ context.Context, loginID string) (*UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	account, ok := d.byLogin[loginID]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *account
	return &clone, nil
}

func (d *memoryDirectory) FindByEmail(_ context.Context, email string) (*UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	loginID, ok := d.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	account, ok := d.byLogin[loginID]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *account
	return &clone, nil
}

func (d *memoryDirectory) Save(_ context.Context, account *UserAccount) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	clone := *account
	d.byLogin[account.LoginID] = &clone
	d.byEmail[account.Email] = account.LoginID
	return nil
}

func (d *memoryDirectory) put(account *UserAccount) {
	_ = d.Save(context.Background(), account)
}

type fakeOtpGateway struct {
	sendFn   func(ctx context.Context, destination, displayName, purpose string) OtpOutcome
	verifyFn func(ctx context.Context, destination, code, purpose string) OtpOutcome
}

func (g *fakeOtpGateway) Send(ctx context.Context, destination, displayName, purpose string) OtpOutcome {
	if g.sendFn != nil {
		return g.sendFn(ctx, destination, displayName, purpose)
	}
	return OtpOutcome{Status: OtpSent, ExpiresInSeconds: 120}
}

func (g *fakeOtpGateway) Verify(ctx context.Context, destination, code, purpose string) OtpOutcome {
	if g.verifyFn != nil {
		return g.verifyFn(ctx, destination, code, purpose)
	}
	if code == "123456" {
		return OtpOutcome{Status: OtpVerified}
	}
	return OtpOutcome{Status: OtpInvalidCode, RemainingAttempts: 2}
}

type fakeIdentityGateway struct {
	completeOnboardingFn  func(ctx context.Context, providerUserID, email, password string) (OnboardingResult, error)
	markCompleteFn        func(ctx context.Context, providerUserID string) error
	listAuthenticatorsFn  func(ctx context.Context, providerUserID string) ([]Authenticator, error)
	deleteAuthenticatorFn func(ctx context.Context, providerUserID, authenticatorID string) error
	stepUpStartFn         func(ctx context.Context, mfaToken, message string) (string, error)
	stepUpVerifyFn        func(ctx context.Context, mfaToken, oobCode string) (PushApprovalStatus, *MFATokenGrant, error)
	reauthenticateFn      func(ctx context.Context, email, password string) (ReauthResult, error)
	mfaEnrollmentsFn      func(ctx context.Context, mfaToken string) ([]Authenticator, error)
	mfaAssociateFn        func(ctx context.Context, mfaToken, authenticatorType string) (MFAAssociation, error)
	mfaChallengeFn        func(ctx context.Context, mfaToken, oobCode string) (PushApprovalStatus, *MFATokenGrant, error)
	mfaVerifyFn           func(ctx context.Context, mfaToken, code string) (PushApprovalStatus, *MFATokenGrant, error)
	mfaSendChallengeFn    func(ctx context.Context, mfaToken, authenticatorID, challengeType string) (MFAChallengeInfo, error)
	mfaVerifyChallengeFn  func(ctx context.Context, mfaToken, code, oobCode string) (PushApprovalStatus, *MFATokenGrant, error)
	sendResetEmailFn      func(ctx context.Context, email string) error
}

func (g *fakeIdentityGateway) CompleteOnboarding(ctx context.Context, providerUserID, email, password string) (OnboardingResult, error) {
	if g.completeOnboardingFn != nil {
		return g.completeOnboardingFn(ctx, providerUserID, email, password)
	}
	return OnboardingResult{MFARequired: true, MFAToken: "mfa-token"}, nil
}

func (g *fakeIdentityGateway) MarkOnboardingComplete(ctx context.Context, providerUserID string) error {
	if g.markCompleteFn != nil {
		return g.markCompleteFn(ctx, providerUserID)
	}
	return nil
}

func (g *fakeIdentityGateway) ListAuthenticators(ctx context.Context, providerUserID string) ([]Authenticator, error) {
	if g.listAuthenticatorsFn != nil {
		return g.listAuthenticatorsFn(ctx, providerUserID)
	}
	return nil, nil
}

func (g *fakeIdentityGateway) DeleteAuthenticator(ctx context.Context, providerUserID, authenticatorID string) error {
	if g.deleteAuthenticatorFn != nil {
		return g.deleteAuthenticatorFn(ctx, providerUserID, authenticatorID)
	}
	return nil
}

func (g *fakeIdentityGateway) StepUpStart(ctx context.Context, mfaToken, message string) (string, error) {
	if g.stepUpStartFn != nil {
		return g.stepUpStartFn(ctx, mfaToken, message)
	}
	return "oob-code", nil
}

func (g *fakeIdentityGateway) StepUpVerify(ctx context.Context, mfaToken, oobCode string) (PushApprovalStatus, *MFATokenGrant, error) {
	if g.stepUpVerifyFn != nil {
		return g.stepUpVerifyFn(ctx, mfaToken, oobCode)
	}
	return PushPending, nil, nil
}

func (g *fakeIdentityGateway) Reauthenticate(ctx context.Context, email, password string) (ReauthResult, error) {
	if g.reauthenticateFn != nil {
		return g.reauthenticateFn(ctx, email, password)
	}
	return ReauthResult{MFARequired: true, MFAToken: "fresh-token", ExpiresAt: 1}, nil
}

func (g *fakeIdentityGateway) MFAEnrollments(ctx context.Context, mfaToken string) ([]Authenticator, error) {
	if g.mfaEnrollmentsFn != nil {
		return g.mfaEnrollmentsFn(ctx, mfaToken)
	}
	return nil, nil
}

func (g *fakeIdentityGateway) MFAAssociate(ctx context.Context, mfaToken, authenticatorType string) (MFAAssociation, error) {
	if g.mfaAssociateFn != nil {
		return g.mfaAssociateFn(ctx, mfaToken, authenticatorType)
	}
	return MFAAssociation{AuthenticatorType: authenticatorType}, nil
}

func (g *fakeIdentityGateway) MFAChallenge(ctx context.Context, mfaToken, oobCode string) (PushApprovalStatus, *MFATokenGrant, error) {
	if g.mfaChallengeFn != nil {
		return g.mfaChallengeFn(ctx, mfaToken, oobCode)
	}
	return PushPending, nil, nil
}

func (g *fakeIdentityGateway) MFAVerify(ctx context.Context, mfaToken, code string) (PushApprovalStatus, *MFATokenGrant, error) {
	if g.mfaVerifyFn != nil {
		return g.mfaVerifyFn(ctx, mfaToken, code)
	}
	return PushApproved, &MFATokenGrant{AccessToken: "access"}, nil
}

func (g *fakeIdentityGateway) MFASendChallenge(ctx context.Context, mfaToken, authenticatorID, challengeType string) (MFAChallengeInfo, error) {
	if g.mfaSendChallengeFn != nil {
		return g.mfaSendChallengeFn(ctx, mfaToken, authenticatorID, challengeType)
	}
	return MFAChallengeInfo{ChallengeType: challengeType, OOBCode: "oob-code"}, nil
}

func (g *fakeIdentityGateway) MFAVerifyChallenge(ctx context.Context, mfaToken, code, oobCode string) (PushApprovalStatus, *MFATokenGrant, error) {
	if g.mfaVerifyChallengeFn != nil {
		return g.mfaVerifyChallengeFn(ctx, mfaToken, code, oobCode)
	}
	return PushApproved, &MFATokenGrant{AccessToken: "access"}, nil
}

func (g *fakeIdentityGateway) SendPasswordResetEmail(ctx context.Context, email string) error {
	if g.sendResetEmailFn != nil {
		return g.sendResetEmailFn(ctx, email)
	}
	return nil
}

type testEngine struct {
	engine    *Engine
	directory *memoryDirectory
	otp       *fakeOtpGateway
	identity  *fakeIdentityGateway
	redis     *miniredis.Miniredis
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dir := newMemoryDirectory()
	otpGateway := &fakeOtpGateway{}
	identity := &fakeIdentityGateway{}

	engine, err := New().
		WithRedis(client).
		WithUserDirectory(dir).
		WithOtpGateway(otpGateway).
		WithIdentityGateway(identity).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		engine:    engine,
		directory: dir,
		otp:       otpGateway,
		identity:  identity,
		redis:     mr,
	}
}

// provisionedAccount returns an account that finished onboarding and is
// active, the usual starting point for recovery flow tests.
func provisionedAccount(loginID, email string) *UserAccount {
	account := NewUserAccount(loginID, email, "Ada", "Lovelace", "test")
	account.ProviderUserID = "auth0|" + loginID
	account.EmailVerified = true
	account.PasswordSet = true
	account.MfaEnrolled = true
	account.Status = AccountActive
	return account
}
