package auth0

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authgate "github.com/obsidianbank/authgate"
)

const (
	grantTypePassword = "password"
	grantTypeMFAOOB   = "http://auth0.com/oauth/grant-type/mfa-oob"
	grantTypeMFAOTP   = "http://auth0.com/oauth/grant-type/mfa-otp"
)

// mfaTokenFallbackTTL is assumed when the challenge token carries no
// readable expiry claim.
const mfaTokenFallbackTTL = 600 * time.Second

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// authenticate runs the resource-owner password grant. An mfa_required
// rejection is not an error for callers here; it carries the challenge token
// the rest of the flow needs, so the rejection payload is decoded alongside
// the success shape instead of going through the normalized error path.
func (c *Client) authenticate(ctx context.Context, email, password string) (tokenResponse, string, error) {
	body := map[string]any{
		"grant_type":    grantTypePassword,
		"client_id":     c.config.ClientID,
		"client_secret": c.config.ClientSecret,
		"username":      email,
		"password":      password,
		"realm":         c.config.Connection,
		"scope":         "openid profile email",
	}

	var grant tokenResponse
	var rejection struct {
		MFAToken string `json:"mfa_token"`
	}
	if err := c.exchange(ctx, "/oauth/token", body, &grant, &rejection); err != nil {
		var pe *authgate.ProviderError
		if errors.As(err, &pe) && pe.Code == "mfa_required" {
			if rejection.MFAToken == "" {
				return tokenResponse{}, "", errors.New("auth0: mfa_required rejection without mfa_token")
			}
			return tokenResponse{}, rejection.MFAToken, nil
		}
		return tokenResponse{}, "", err
	}
	return grant, "", nil
}

// CompleteOnboarding describes the completeonboarding operation and its observable behavior.
//
// CompleteOnboarding may return an error when input validation, dependency calls, or security checks fail.
// CompleteOnboarding does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) CompleteOnboarding(ctx context.Context, providerUserID, email, password string) (authgate.OnboardingResult, error) {
	patch := map[string]any{
		"password":   password,
		"connection": c.config.Connection,
	}
	if err := c.managementRequest(ctx, http.MethodPatch, "/api/v2/users/"+url.PathEscape(providerUserID), patch, nil); err != nil {
		return authgate.OnboardingResult{}, err
	}

	grant, mfaToken, err := c.authenticate(ctx, email, password)
	if err != nil {
		return authgate.OnboardingResult{}, err
	}

	if mfaToken != "" {
		return authgate.OnboardingResult{
			MFARequired: true,
			MFAToken:    mfaToken,
		}, nil
	}
	return authgate.OnboardingResult{
		AccessToken: grant.AccessToken,
		IDToken:     grant.IDToken,
	}, nil
}

// MarkOnboardingComplete describes the markonboardingcomplete operation and its observable behavior.
//
// MarkOnboardingComplete may return an error when input validation, dependency calls, or security checks fail.
// MarkOnboardingComplete does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MarkOnboardingComplete(ctx context.Context, providerUserID string) error {
	patch := map[string]any{
		"app_metadata": map[string]any{
			"onboarding_complete": true,
		},
	}
	return c.managementRequest(ctx, http.MethodPatch, "/api/v2/users/"+url.PathEscape(providerUserID), patch, nil)
}

type providerAuthenticator struct {
	ID                string `json:"id"`
	AuthenticatorType string `json:"authenticator_type"`
	Active            bool   `json:"active"`
	Name              string `json:"name"`
	OOBChannel        string `json:"oob_channel"`
}

func (a providerAuthenticator) normalized() authgate.Authenticator {
	authType := a.AuthenticatorType
	// Guardian push enrollments report as out-of-band on the auth0 channel.
	if authType == "oob" && a.OOBChannel == "auth0" {
		authType = authgate.AuthenticatorTypePush
	}
	if authType == "otp" {
		authType = authgate.AuthenticatorTypeTOTP
	}
	return authgate.Authenticator{
		ID:         a.ID,
		Type:       authType,
		Confirmed:  a.Active,
		Name:       a.Name,
		OOBChannel: a.OOBChannel,
	}
}

// ListAuthenticators describes the listauthenticators operation and its observable behavior.
//
// ListAuthenticators may return an error when input validation, dependency calls, or security checks fail.
// ListAuthenticators does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) ListAuthenticators(ctx context.Context, providerUserID string) ([]authgate.Authenticator, error) {
	var raw []providerAuthenticator
	if err := c.managementRequest(ctx, http.MethodGet, "/api/v2/users/"+url.PathEscape(providerUserID)+"/authenticators", nil, &raw); err != nil {
		return nil, err
	}

	out := make([]authgate.Authenticator, 0, len(raw))
	for _, a := range raw {
		out = append(out, a.normalized())
	}
	return out, nil
}

// DeleteAuthenticator removes one enrollment. A 404 means the authenticator
// is already gone, which is the state the caller wanted.
func (c *Client) DeleteAuthenticator(ctx context.Context, providerUserID, authenticatorID string) error {
	path := "/api/v2/users/" + url.PathEscape(providerUserID) + "/authenticators/" + url.PathEscape(authenticatorID)
	err := c.managementRequest(ctx, http.MethodDelete, path, nil, nil)

	var pe *authgate.ProviderError
	if errors.As(err, &pe) && pe.HTTPStatus == http.StatusNotFound {
		return nil
	}
	return err
}

// StepUpStart describes the stepupstart operation and its observable behavior.
//
// StepUpStart may return an error when input validation, dependency calls, or security checks fail.
// StepUpStart does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) StepUpStart(ctx context.Context, mfaToken, message string) (string, error) {
	body := map[string]any{
		"client_id":      c.config.ClientID,
		"client_secret":  c.config.ClientSecret,
		"mfa_token":      mfaToken,
		"challenge_type": "oob",
	}
	if message != "" {
		body["binding_message"] = message
	}

	var challenge struct {
		OOBCode string `json:"oob_code"`
	}
	if err := c.postJSON(ctx, "/mfa/challenge", "", body, &challenge); err != nil {
		return "", err
	}
	if challenge.OOBCode == "" {
		return "", errors.New("auth0: challenge response missing oob_code")
	}
	return challenge.OOBCode, nil
}

// oobGrant polls one out-of-band challenge. The provider reports the user's
// decision through rejection codes, so those map onto statuses instead of
// bubbling up as errors.
func (c *Client) oobGrant(ctx context.Context, mfaToken, oobCode, bindingCode string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	body := map[string]any{
		"grant_type":    grantTypeMFAOOB,
		"client_id":     c.config.ClientID,
		"client_secret": c.config.ClientSecret,
		"mfa_token":     mfaToken,
		"oob_code":      oobCode,
	}
	if bindingCode != "" {
		body["binding_code"] = bindingCode
	}

	var grant tokenResponse
	err := c.postJSON(ctx, "/oauth/token", "", body, &grant)
	if err == nil {
		return authgate.PushApproved, &authgate.MFATokenGrant{
			AccessToken:  grant.AccessToken,
			IDToken:      grant.IDToken,
			RefreshToken: grant.RefreshToken,
			ExpiresIn:    grant.ExpiresIn,
		}, nil
	}

	var pe *authgate.ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "authorization_pending", "slow_down":
			return authgate.PushPending, nil, nil
		case "access_denied", "invalid_grant":
			return authgate.PushRejected, nil, nil
		case "expired_token":
			return authgate.PushExpired, nil, nil
		}
	}
	return authgate.PushError, nil, err
}

// StepUpVerify describes the stepupverify operation and its observable behavior.
//
// StepUpVerify may return an error when input validation, dependency calls, or security checks fail.
// StepUpVerify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) StepUpVerify(ctx context.Context, mfaToken, oobCode string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	return c.oobGrant(ctx, mfaToken, oobCode, "")
}

// Reauthenticate describes the reauthenticate operation and its observable behavior.
//
// Reauthenticate may return an error when input validation, dependency calls, or security checks fail.
// Reauthenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Reauthenticate(ctx context.Context, email, password string) (authgate.ReauthResult, error) {
	_, mfaToken, err := c.authenticate(ctx, email, password)
	if err != nil {
		return authgate.ReauthResult{}, err
	}
	if mfaToken == "" {
		return authgate.ReauthResult{MFARequired: false}, nil
	}
	return authgate.ReauthResult{
		MFARequired: true,
		MFAToken:    mfaToken,
		ExpiresAt:   mfaTokenExpiry(mfaToken),
	}, nil
}

// mfaTokenExpiry reads the exp claim without verifying the signature; the
// token is the provider's own and only the deadline matters here.
func mfaTokenExpiry(mfaToken string) int64 {
	token, _, err := jwt.NewParser().ParseUnverified(mfaToken, jwt.MapClaims{})
	if err == nil {
		if exp, expErr := token.Claims.GetExpirationTime(); expErr == nil && exp != nil {
			return exp.Unix()
		}
	}
	return time.Now().Add(mfaTokenFallbackTTL).Unix()
}

// MFAEnrollments describes the mfaenrollments operation and its observable behavior.
//
// MFAEnrollments may return an error when input validation, dependency calls, or security checks fail.
// MFAEnrollments does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MFAEnrollments(ctx context.Context, mfaToken string) ([]authgate.Authenticator, error) {
	var raw []providerAuthenticator
	if err := c.do(ctx, http.MethodGet, "/mfa/authenticators", mfaToken, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]authgate.Authenticator, 0, len(raw))
	for _, a := range raw {
		out = append(out, a.normalized())
	}
	return out, nil
}

// MFAAssociate describes the mfaassociate operation and its observable behavior.
//
// MFAAssociate may return an error when input validation, dependency calls, or security checks fail.
// MFAAssociate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MFAAssociate(ctx context.Context, mfaToken, authenticatorType string) (authgate.MFAAssociation, error) {
	var body map[string]any
	switch authenticatorType {
	case authgate.AuthenticatorTypePush:
		body = map[string]any{
			"authenticator_types": []string{"oob"},
			"oob_channels":        []string{"auth0"},
		}
	case authgate.AuthenticatorTypeTOTP:
		body = map[string]any{
			"authenticator_types": []string{"otp"},
		}
	default:
		return authgate.MFAAssociation{}, &authgate.ProviderError{
			Code:        "unsupported_authenticator_type",
			Description: "authenticator type " + authenticatorType + " is not supported",
			HTTPStatus:  http.StatusBadRequest,
		}
	}

	var association struct {
		AuthenticatorType string   `json:"authenticator_type"`
		Secret            string   `json:"secret"`
		BarcodeURI        string   `json:"barcode_uri"`
		OOBCode           string   `json:"oob_code"`
		RecoveryCodes     []string `json:"recovery_codes"`
	}
	if err := c.postJSON(ctx, "/mfa/associate", mfaToken, body, &association); err != nil {
		return authgate.MFAAssociation{}, err
	}

	return authgate.MFAAssociation{
		AuthenticatorType: authenticatorType,
		Secret:            association.Secret,
		BarcodeURI:        association.BarcodeURI,
		OOBCode:           association.OOBCode,
		RecoveryCodes:     association.RecoveryCodes,
	}, nil
}

// MFAChallenge describes the mfachallenge operation and its observable behavior.
//
// MFAChallenge may return an error when input validation, dependency calls, or security checks fail.
// MFAChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MFAChallenge(ctx context.Context, mfaToken, oobCode string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	return c.oobGrant(ctx, mfaToken, oobCode, "")
}

// MFAVerify describes the mfaverify operation and its observable behavior.
//
// MFAVerify may return an error when input validation, dependency calls, or security checks fail.
// MFAVerify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MFAVerify(ctx context.Context, mfaToken, code string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	body := map[string]any{
		"grant_type":    grantTypeMFAOTP,
		"client_id":     c.config.ClientID,
		"client_secret": c.config.ClientSecret,
		"mfa_token":     mfaToken,
		"otp":           code,
	}

	var grant tokenResponse
	err := c.postJSON(ctx, "/oauth/token", "", body, &grant)
	if err == nil {
		return authgate.PushApproved, &authgate.MFATokenGrant{
			AccessToken:  grant.AccessToken,
			IDToken:      grant.IDToken,
			RefreshToken: grant.RefreshToken,
			ExpiresIn:    grant.ExpiresIn,
		}, nil
	}

	var pe *authgate.ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "invalid_grant", "access_denied":
			return authgate.PushRejected, nil, nil
		case "expired_token":
			return authgate.PushExpired, nil, nil
		}
	}
	return authgate.PushError, nil, err
}

// MFASendChallenge describes the mfasendchallenge operation and its observable behavior.
//
// MFASendChallenge may return an error when input validation, dependency calls, or security checks fail.
// MFASendChallenge does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MFASendChallenge(ctx context.Context, mfaToken, authenticatorID, challengeType string) (authgate.MFAChallengeInfo, error) {
	body := map[string]any{
		"client_id":        c.config.ClientID,
		"client_secret":    c.config.ClientSecret,
		"mfa_token":        mfaToken,
		"challenge_type":   challengeType,
		"authenticator_id": authenticatorID,
	}

	var challenge struct {
		ChallengeType string `json:"challenge_type"`
		OOBCode       string `json:"oob_code"`
	}
	if err := c.postJSON(ctx, "/mfa/challenge", "", body, &challenge); err != nil {
		return authgate.MFAChallengeInfo{}, err
	}

	return authgate.MFAChallengeInfo{
		ChallengeType: challenge.ChallengeType,
		OOBCode:       challenge.OOBCode,
	}, nil
}

// MFAVerifyChallenge completes a challenge with whichever proof the
// authenticator produced: an out-of-band code for push and SMS, a generated
// code for TOTP.
func (c *Client) MFAVerifyChallenge(ctx context.Context, mfaToken, code, oobCode string) (authgate.PushApprovalStatus, *authgate.MFATokenGrant, error) {
	if oobCode != "" {
		return c.oobGrant(ctx, mfaToken, oobCode, code)
	}
	return c.MFAVerify(ctx, mfaToken, code)
}

// SendPasswordResetEmail describes the sendpasswordresetemail operation and its observable behavior.
//
// SendPasswordResetEmail may return an error when input validation, dependency calls, or security checks fail.
// SendPasswordResetEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	body := map[string]any{
		"client_id":  c.config.ClientID,
		"email":      email,
		"connection": c.config.Connection,
	}
	return c.postJSON(ctx, "/dbconnections/change_password", "", body, nil)
}
