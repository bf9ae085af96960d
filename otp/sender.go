package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookSender posts generated codes to a delivery service that owns the
// actual email or SMS dispatch.
type WebhookSender struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWebhookSender describes the newwebhooksender operation and its observable behavior.
//
// NewWebhookSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewWebhookSender(url string, timeout time.Duration, logger zerolog.Logger) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "otp_webhook_sender").Logger(),
	}
}

// SendCode describes the sendcode operation and its observable behavior.
//
// SendCode may return an error when input validation, dependency calls, or security checks fail.
// SendCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *WebhookSender) SendCode(ctx context.Context, destination, displayName, code string, expiresIn time.Duration) error {
	payload, err := json.Marshal(map[string]any{
		"destination":        destination,
		"display_name":       displayName,
		"code":               code,
		"expires_in_seconds": int(expiresIn.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("encode delivery request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delivery service responded %d", resp.StatusCode)
	}

	s.logger.Debug().Msg("code handed to delivery service")
	return nil
}

// LogSender writes codes to the log instead of delivering them. Development
// environments only.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender describes the newlogsender operation and its observable behavior.
//
// NewLogSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{
		logger: logger.With().Str("component", "otp_log_sender").Logger(),
	}
}

// SendCode describes the sendcode operation and its observable behavior.
//
// SendCode may return an error when input validation, dependency calls, or security checks fail.
// SendCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *LogSender) SendCode(_ context.Context, destination, _, code string, expiresIn time.Duration) error {
	s.logger.Warn().
		Str("destination", destination).
		Str("code", code).
		Dur("expires_in", expiresIn).
		Msg("otp delivery is in log mode")
	return nil
}
