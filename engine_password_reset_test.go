package authgate

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRequestPasswordResetDecoyIndistinguishable(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	deactivated := provisionedAccount("gone", "gone@example.com")
	deactivated.Deactivate("closed")
	te.directory.put(deactivated)

	unknown, err := te.engine.RequestPasswordReset(ctx, "missing")
	if err != nil {
		t.Fatalf("unknown login error = %v", err)
	}
	dead, err := te.engine.RequestPasswordReset(ctx, "gone")
	if err != nil {
		t.Fatalf("deactivated login error = %v", err)
	}

	// The two non-sends must be byte-for-byte equal so the endpoint cannot
	// leak which login IDs exist.
	if !reflect.DeepEqual(unknown, dead) {
		t.Fatalf("decoy responses differ:\nunknown=%+v\ndeactivated=%+v", unknown, dead)
	}
	if unknown.Outcome.Status != OtpSent || unknown.MaskedEmail != "***" {
		t.Fatalf("decoy shape = %+v", unknown)
	}
	if unknown.ExpiresInSeconds != 120 {
		t.Fatalf("decoy expiry = %d, want 120", unknown.ExpiresInSeconds)
	}
}

func TestRequestPasswordResetRealSendMatchesDecoyShape(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.directory.put(provisionedAccount("u1", "john.doe@example.com"))

	real, err := te.engine.RequestPasswordReset(ctx, "u1")
	if err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if real.Outcome.Status != OtpSent {
		t.Fatalf("Status = %v", real.Outcome.Status)
	}
	if real.MaskedEmail != "jo***@example.com" {
		t.Fatalf("MaskedEmail = %q", real.MaskedEmail)
	}
	if real.ExpiresInSeconds != 120 {
		t.Fatalf("ExpiresInSeconds = %d, want the same value as the decoy", real.ExpiresInSeconds)
	}
}

func TestRequestPasswordResetLockedIsExplicit(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	locked := provisionedAccount("u1", "u1@example.com")
	_ = locked.Lock(LockByBank)
	te.directory.put(locked)

	if _, err := te.engine.RequestPasswordReset(ctx, "u1"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("error = %v, want ErrAccountLocked", err)
	}
}

func TestRequestPasswordResetWithoutPassword(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	account := provisionedAccount("u1", "u1@example.com")
	account.PasswordSet = false
	te.directory.put(account)

	if _, err := te.engine.RequestPasswordReset(ctx, "u1"); !errors.Is(err, ErrPasswordNotSet) {
		t.Fatalf("error = %v, want ErrPasswordNotSet", err)
	}
}

func TestPasswordResetFullFlow(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.directory.put(provisionedAccount("u1", "u1@example.com"))

	if _, err := te.engine.RequestPasswordReset(ctx, "u1"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}

	verify, err := te.engine.VerifyResetOtp(ctx, "u1", "123456")
	if err != nil {
		t.Fatalf("VerifyResetOtp() error = %v", err)
	}
	if verify.Outcome.Status != OtpVerified || verify.ResetToken == "" {
		t.Fatalf("unexpected verify result: %+v", verify)
	}
	if verify.ExpiresInSeconds != 900 {
		t.Fatalf("token expiry = %d, want 900", verify.ExpiresInSeconds)
	}

	if err := te.engine.CompletePasswordReset(ctx, "u1", verify.ResetToken, "Aa1!Aa1!Aa1!"); err != nil {
		t.Fatalf("CompletePasswordReset() error = %v", err)
	}

	// The token is single-use: replaying it must fail.
	err = te.engine.CompletePasswordReset(ctx, "u1", verify.ResetToken, "Bb2@Bb2@Bb2@")
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("replay error = %v, want ErrResetTokenInvalid", err)
	}
}

func TestVerifyResetOtpUnknownLooksLikeWrongCode(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	result, err := te.engine.VerifyResetOtp(ctx, "missing", "123456")
	if err != nil {
		t.Fatalf("VerifyResetOtp() error = %v", err)
	}
	if result.Outcome.Status != OtpInvalidCode {
		t.Fatalf("Status = %v, want OtpInvalidCode", result.Outcome.Status)
	}
	if result.ResetToken != "" {
		t.Fatal("unknown login must not receive a token")
	}
}

func TestCompletePasswordResetWeakPasswordBurnsToken(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.directory.put(provisionedAccount("u1", "u1@example.com"))

	verify, err := te.engine.VerifyResetOtp(ctx, "u1", "123456")
	if err != nil {
		t.Fatalf("VerifyResetOtp() error = %v", err)
	}

	if err := te.engine.CompletePasswordReset(ctx, "u1", verify.ResetToken, "weak"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("weak password error = %v, want ErrPasswordPolicy", err)
	}

	// The token was consumed before validation; retrying with a strong
	// password needs a fresh one.
	err = te.engine.CompletePasswordReset(ctx, "u1", verify.ResetToken, "Aa1!Aa1!Aa1!")
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("reuse error = %v, want ErrResetTokenInvalid", err)
	}
}

func TestCompletePasswordResetSubjectMismatchDoesNotConsume(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.directory.put(provisionedAccount("u1", "u1@example.com"))
	te.directory.put(provisionedAccount("u2", "u2@example.com"))

	verify, err := te.engine.VerifyResetOtp(ctx, "u1", "123456")
	if err != nil {
		t.Fatalf("VerifyResetOtp() error = %v", err)
	}

	if err := te.engine.CompletePasswordReset(ctx, "u2", verify.ResetToken, "Aa1!Aa1!Aa1!"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("mismatched subject error = %v, want ErrResetTokenInvalid", err)
	}

	// The rightful owner can still redeem.
	if err := te.engine.CompletePasswordReset(ctx, "u1", verify.ResetToken, "Aa1!Aa1!Aa1!"); err != nil {
		t.Fatalf("owner redeem after probe error = %v", err)
	}
}

func TestCompletePasswordResetStripsHistoryPrefix(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.directory.put(provisionedAccount("u1", "u1@example.com"))
	te.identity.completeOnboardingFn = func(context.Context, string, string, string) (OnboardingResult, error) {
		return OnboardingResult{}, &ProviderError{
			Code:        "invalid_body",
			Description: "PasswordHistoryError: Password has previously been used",
			HTTPStatus:  400,
		}
	}

	verify, err := te.engine.VerifyResetOtp(ctx, "u1", "123456")
	if err != nil {
		t.Fatalf("VerifyResetOtp() error = %v", err)
	}

	err = te.engine.CompletePasswordReset(ctx, "u1", verify.ResetToken, "Aa1!Aa1!Aa1!")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.Description != "Password has previously been used" {
		t.Fatalf("Description = %q, prefix not stripped", pe.Description)
	}
}

func TestSendResetEmail(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.directory.put(provisionedAccount("u1", "u1@example.com"))

	sent := ""
	te.identity.sendResetEmailFn = func(_ context.Context, email string) error {
		sent = email
		return nil
	}

	if err := te.engine.SendResetEmail(ctx, "u1@example.com"); err != nil {
		t.Fatalf("SendResetEmail() error = %v", err)
	}
	if sent != "u1@example.com" {
		t.Fatalf("provider received %q", sent)
	}

	// Unknown addresses are swallowed.
	sent = ""
	if err := te.engine.SendResetEmail(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown address error = %v", err)
	}
	if sent != "" {
		t.Fatal("provider must not be called for unknown addresses")
	}
}
