// Package auth0 implements the engine's identity gateway against the Auth0
// management and MFA APIs. Business rejections surface as
// *authgate.ProviderError; transport failures stay plain errors.
package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	authgate "github.com/obsidianbank/authgate"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Domain is the tenant domain without scheme, e.g. "bank.eu.auth0.com".
	Domain string
	// ClientID and ClientSecret identify the first-party application used for
	// resource-owner and MFA grants.
	ClientID     string
	ClientSecret string
	// M2MClientID and M2MClientSecret identify the machine-to-machine
	// application authorized for the management API.
	M2MClientID     string
	M2MClientSecret string
	// Connection is the database connection holding the user credentials.
	Connection  string
	HTTPTimeout time.Duration
}

// Client defines a public type used by authgate APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger

	// baseOverride replaces the tenant URL in tests.
	baseOverride string

	tokenMu sync.Mutex
	// mgmtToken is cached until mgmtExpiry; refreshed an hour before the
	// provider-side expiry so in-flight calls never race the cutoff.
	mgmtToken  string
	mgmtExpiry time.Time
}

// NewClient describes the newclient operation and its observable behavior.
//
// NewClient may return an error when input validation, dependency calls, or security checks fail.
// NewClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Domain == "" {
		return nil, errors.New("auth0: Domain must be set")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("auth0: ClientID and ClientSecret must be set")
	}
	if cfg.Connection == "" {
		return nil, errors.New("auth0: Connection must be set")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger.With().Str("component", "auth0_client").Logger(),
	}, nil
}

func (c *Client) baseURL() string {
	if c.baseOverride != "" {
		return c.baseOverride
	}
	return "https://" + c.config.Domain
}

// mgmtTokenRefreshMargin keeps a wide gap between refresh and expiry so a
// slow management call never rides a token into its cutoff. Grants shorter
// than two margins get half their lifetime instead, so a short-lived token
// is still cached rather than refetched on every call.
const mgmtTokenRefreshMargin = time.Hour

func (c *Client) managementToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.mgmtToken != "" && time.Now().Before(c.mgmtExpiry) {
		return c.mgmtToken, nil
	}

	body := map[string]any{
		"grant_type":    "client_credentials",
		"client_id":     c.config.M2MClientID,
		"client_secret": c.config.M2MClientSecret,
		"audience":      c.baseURL() + "/api/v2/",
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.postJSON(ctx, "/oauth/token", "", body, &grant); err != nil {
		return "", err
	}
	if grant.AccessToken == "" {
		return "", errors.New("auth0: empty management token in response")
	}

	lifetime := time.Duration(grant.ExpiresIn) * time.Second
	margin := mgmtTokenRefreshMargin
	if margin > lifetime/2 {
		margin = lifetime / 2
	}

	c.mgmtToken = grant.AccessToken
	c.mgmtExpiry = time.Now().Add(lifetime - margin)
	c.logger.Debug().Msg("management token refreshed")

	return c.mgmtToken, nil
}

// providerError decodes an error payload in either the OAuth shape
// (error/error_description) or the management API shape
// (errorCode/message) and normalizes it onto authgate.ProviderError.
func providerError(status int, payload []byte) *authgate.ProviderError {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"errorCode"`
		Message          string `json:"message"`
		Description      string `json:"description"`
	}
	_ = json.Unmarshal(payload, &body)

	code := body.Error
	if code == "" {
		code = body.ErrorCode
	}
	if code == "" {
		code = http.StatusText(status)
	}
	description := body.ErrorDescription
	if description == "" {
		description = body.Message
	}
	if description == "" {
		description = body.Description
	}

	return &authgate.ProviderError{
		Code:        code,
		Description: description,
		HTTPStatus:  status,
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("auth0: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("auth0: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth0: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("auth0: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerError(resp.StatusCode, payload)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("auth0: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path, bearer string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, bearer, body, out)
}

// exchange posts a token-endpoint request and decodes the response body into
// out on success or into rejectionOut on an error status, then returns the
// normalized provider error. Callers that treat specific rejections as flow
// signals need the rejection payload, not just the error code.
func (c *Client) exchange(ctx context.Context, path string, body, out, rejectionOut any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("auth0: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("auth0: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth0: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("auth0: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if rejectionOut != nil {
			_ = json.Unmarshal(payload, rejectionOut)
		}
		return providerError(resp.StatusCode, payload)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("auth0: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) managementRequest(ctx context.Context, method, path string, body, out any) error {
	token, err := c.managementToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, token, body, out)
}
