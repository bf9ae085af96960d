package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	authgate "github.com/obsidianbank/authgate"
)

type memDirectory struct {
	mu       sync.Mutex
	accounts map[string]*authgate.UserAccount
}

func newMemDirectory() *memDirectory {
	return &memDirectory{accounts: make(map[string]*authgate.UserAccount)}
}

func (d *memDirectory) put(account *authgate.UserAccount) {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := *account
	d.accounts[account.LoginID] = &clone
}

func (d *memDirectory) FindByLoginID(_ context.Context, loginID string) (*authgate.UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	account, ok := d.accounts[loginID]
	if !ok {
		return nil, authgate.ErrUserNotFound
	}
	clone := *account
	return &clone, nil
}

func (d *memDirectory) FindByEmail(_ context.Context, email string) (*authgate.UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range d.accounts {
		if strings.EqualFold(account.Email, email) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, authgate.ErrUserNotFound
}

func (d *memDirectory) Save(_ context.Context, account *authgate.UserAccount) error {
	d.put(account)
	return nil
}

// stubOtp accepts exactly "123456" and can be flipped into rate limiting.
type stubOtp struct {
	rateLimited bool
}

func (g *stubOtp) Send(_ context.Context, _, _, _ string) authgate.OtpOutcome {
	if g.rateLimited {
		return authgate.OtpOutcome{Status: authgate.OtpRateLimited, RetryAfterSeconds: 30}
	}
	return authgate.OtpOutcome{Status: authgate.OtpSent, ExpiresInSeconds: 120}
}

func (g *stubOtp) Verify(_ context.Context, _, code, _ string) authgate.OtpOutcome {
	if code == "123456" {
		return authgate.OtpOutcome{Status: authgate.OtpVerified}
	}
	return authgate.OtpOutcome{Status: authgate.OtpInvalidCode, RemainingAttempts: 2}
}

type stubIdentity struct {
	completeOnboardingErr error
}

func (g *stubIdentity) CompleteOnboarding(context.Context, string, string, string) (authgate.OnboardingResult, error) {
	if g.completeOnboardingErr != nil {
		return authgate.OnboardingResult{}, g.completeOnboardingErr
	}
	return authgate.OnboardingResult{MFARequired: true, MFAToken: "mfa-token"}, nil
}

func (g *stubIdentity) MarkOnboardingComplete(context.Context, string) error { return nil }

func (g *stubIdentity) ListAuthenticators(context.Context, string) ([]authgate.Authenticator, error) {
	return nil, nil
}

func (g *stubIdentity) DeleteAuthenticator(context.Context, string, string) error { return nil }

func (g *stubIdentity) StepUpStart(context.Context, string, string) (string, error) {
	return "oob-code", nil
}

func (g *stubIdentity) StepUpVerify(context.Context, string, string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	return authgate.PushApproved, &authgate.MFATokenGrant{AccessToken: "at", IDToken: "it", ExpiresIn: 3600}, nil
}

func (g *stubIdentity) Reauthenticate(context.Context, string, string) (authgate.ReauthResult, error) {
	return authgate.ReauthResult{MFARequired: true, MFAToken: "fresh-token", ExpiresAt: 1}, nil
}

func (g *stubIdentity) MFAEnrollments(context.Context, string) ([]authgate.Authenticator, error) {
	return nil, nil
}

func (g *stubIdentity) MFAAssociate(context.Context, string, string) (authgate.MFAAssociation, error) {
	return authgate.MFAAssociation{AuthenticatorType: "push", BarcodeURI: "otpauth://x"}, nil
}

func (g *stubIdentity) MFAChallenge(context.Context, string, string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	return authgate.PushPending, nil, nil
}

func (g *stubIdentity) MFAVerify(context.Context, string, string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	return authgate.PushApproved, &authgate.MFATokenGrant{AccessToken: "at"}, nil
}

func (g *stubIdentity) MFASendChallenge(context.Context, string, string, string) (authgate.MFAChallengeInfo, error) {
	return authgate.MFAChallengeInfo{ChallengeType: "oob", OOBCode: "oob-code"}, nil
}

func (g *stubIdentity) MFAVerifyChallenge(context.Context, string, string, string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	return authgate.PushApproved, nil, nil
}

func (g *stubIdentity) SendPasswordResetEmail(context.Context, string) error { return nil }

type testServer struct {
	router    http.Handler
	directory *memDirectory
	otp       *stubOtp
	identity  *stubIdentity
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	directory := newMemDirectory()
	otp := &stubOtp{}
	identity := &stubIdentity{}

	engine, err := authgate.New().
		WithRedis(client).
		WithUserDirectory(directory).
		WithOtpGateway(otp).
		WithIdentityGateway(identity).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(engine.Close)

	server := NewServer(engine, zerolog.Nop())
	return &testServer{
		router:    server.Router(),
		directory: directory,
		otp:       otp,
		identity:  identity,
	}
}

func pendingAccount(loginID, email string) *authgate.UserAccount {
	account := authgate.NewUserAccount(loginID, email, "Ada", "Lovelace", "test")
	_ = account.Provision("auth0|" + loginID)
	return account
}

func activeAccount(loginID, email string) *authgate.UserAccount {
	account := pendingAccount(loginID, email)
	account.MarkEmailVerified()
	account.MarkPasswordEstablished()
	account.MarkMfaEnrolled()
	_ = account.Activate()
	return account
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response %q is not JSON: %v", rec.Body.String(), err)
	}
	return rec, decoded
}

func dataField(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", body)
	}
	return data
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestValidationFailureNamesField(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/onboarding/check", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["error"] != "invalid_request" {
		t.Fatalf("error = %v", body["error"])
	}
	if desc, _ := body["error_description"].(string); !strings.Contains(desc, "LoginID") {
		t.Fatalf("error_description = %q, want field name", desc)
	}
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/onboarding/check", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOnboardingCheck(t *testing.T) {
	ts := newTestServer(t)
	ts.directory.put(pendingAccount("u1", "ada.lovelace@example.com"))

	rec, body := ts.do(t, http.MethodPost, "/api/v1/onboarding/check", map[string]any{"login_id": "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}

	data := dataField(t, body)
	if data["masked_email"] != authgate.MaskEmail("ada.lovelace@example.com") {
		t.Fatalf("masked_email = %v", data["masked_email"])
	}
	if data["requires_email_verification"] != true {
		t.Fatalf("requires_email_verification = %v", data["requires_email_verification"])
	}
	if data["account_status"] != "pending_verification" {
		t.Fatalf("account_status = %v", data["account_status"])
	}
}

func TestOnboardingCheckUnknown(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/onboarding/check", map[string]any{"login_id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body["error"] != "user_not_found" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestOnboardingVerifyWrongCode(t *testing.T) {
	ts := newTestServer(t)
	ts.directory.put(pendingAccount("u1", "u1@example.com"))

	rec, body := ts.do(t, http.MethodPost, "/api/v1/onboarding/verify-otp", map[string]any{
		"login_id": "u1",
		"code":     "000000",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["error"] != "invalid_code" {
		t.Fatalf("error = %v", body["error"])
	}
	data := dataField(t, body)
	if data["remaining_attempts"] != float64(2) {
		t.Fatalf("remaining_attempts = %v", data["remaining_attempts"])
	}
}

func TestResetRequestLocked(t *testing.T) {
	ts := newTestServer(t)
	account := activeAccount("u1", "u1@example.com")
	_ = account.Lock(authgate.LockByBank)
	ts.directory.put(account)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/password-reset/request", map[string]any{"login_id": "u1"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body["error"] != "account_locked" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestResetRequestUnknownLooksSent(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/password-reset/request", map[string]any{"login_id": "ghost"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data := dataField(t, body)
	if data["status"] != "sent" || data["masked_email"] != "***" {
		t.Fatalf("data = %v", data)
	}
}

func TestResetRequestRateLimited(t *testing.T) {
	ts := newTestServer(t)
	ts.directory.put(activeAccount("u1", "u1@example.com"))
	ts.otp.rateLimited = true

	rec, body := ts.do(t, http.MethodPost, "/api/v1/password-reset/request", map[string]any{"login_id": "u1"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body["error"] != "rate_limited" {
		t.Fatalf("error = %v", body["error"])
	}
	data := dataField(t, body)
	if data["retry_after_seconds"] != float64(30) {
		t.Fatalf("retry_after_seconds = %v", data["retry_after_seconds"])
	}
}

func TestAccountRegister(t *testing.T) {
	ts := newTestServer(t)

	payload := map[string]any{
		"login_id":   "u1",
		"email":      "u1@example.com",
		"first_name": "Ada",
		"last_name":  "Lovelace",
	}

	rec, body := ts.do(t, http.MethodPost, "/api/v1/accounts/register", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	data := dataField(t, body)
	if data["masked_email"] != authgate.MaskEmail("u1@example.com") {
		t.Fatalf("masked_email = %v", data["masked_email"])
	}
	if _, leaked := data["email"]; leaked {
		t.Fatal("raw email must not appear in the response")
	}

	rec, body = ts.do(t, http.MethodPost, "/api/v1/accounts/register", payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	if body["error"] != "user_already_exists" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestAccountLockValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.directory.put(activeAccount("u1", "u1@example.com"))

	rec, body := ts.do(t, http.MethodPost, "/api/v1/accounts/lock", map[string]any{
		"login_id":  "u1",
		"lock_type": "other",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["error"] != "invalid_request" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestStepUpVerifyApproved(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/stepup/verify", map[string]any{
		"mfa_token": "mfa-token",
		"oob_code":  "oob-code",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	data := dataField(t, body)
	if data["status"] != "approved" {
		t.Fatalf("status = %v", data["status"])
	}
	if data["access_token"] != "at" {
		t.Fatalf("access_token = %v", data["access_token"])
	}
}

func TestProviderErrorPassthrough(t *testing.T) {
	ts := newTestServer(t)
	account := pendingAccount("u1", "u1@example.com")
	account.MarkEmailVerified()
	ts.directory.put(account)

	ts.identity.completeOnboardingErr = &authgate.ProviderError{
		Code:        "password_dictionary_error",
		Description: "password is too common",
		HTTPStatus:  http.StatusBadRequest,
	}

	rec, body := ts.do(t, http.MethodPost, "/api/v1/onboarding/set-password", map[string]any{
		"login_id": "u1",
		"password": "Aa1!Aa1!Aa1!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["error"] != "password_dictionary_error" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestMetricsSnapshot(t *testing.T) {
	ts := newTestServer(t)
	ts.directory.put(activeAccount("u1", "u1@example.com"))

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/accounts/lock", map[string]any{
		"login_id":  "u1",
		"lock_type": "bank",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("lock status = %d", rec.Code)
	}

	rec, body := ts.do(t, http.MethodGet, "/metrics/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	data := dataField(t, body)
	counters, ok := data["counters"].(map[string]any)
	if !ok {
		t.Fatalf("counters missing: %v", data)
	}
	if counters["authgate_account_locked_total"] != float64(1) {
		t.Fatalf("authgate_account_locked_total = %v", counters["authgate_account_locked_total"])
	}
}

func TestAccountGet(t *testing.T) {
	ts := newTestServer(t)
	ts.directory.put(activeAccount("u1", "u1@example.com"))

	rec, body := ts.do(t, http.MethodGet, "/api/v1/accounts/u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := dataField(t, body)
	if data["status"] != "active" || data["provisioned"] != true {
		t.Fatalf("data = %v", data)
	}
}
