package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	authgate "github.com/obsidianbank/authgate"
	"github.com/obsidianbank/authgate/metrics/export/internaldefs"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type errorEnvelope struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorEnvelope{
		Success:          false,
		Error:            code,
		ErrorDescription: description,
	})
}

// decodeBody unmarshals and validates a request payload. Validation failures
// come back as invalid_request with the first offending field named.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid field: "+fieldErrs[0].Field())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "request validation failed")
		return false
	}
	return true
}

// writeEngineError maps engine sentinels onto the error envelope. The
// mapping deliberately keeps account-existence detail out of response codes
// that enumeration-sensitive flows return.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var pe *authgate.ProviderError
	if errors.As(err, &pe) {
		status := pe.HTTPStatus
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeError(w, status, pe.Code, pe.Description)
		return
	}

	code, status := errorStatus(err)
	writeError(w, status, code, err.Error())
}

func errorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, authgate.ErrUserNotFound):
		return "user_not_found", http.StatusNotFound
	case errors.Is(err, authgate.ErrUserAlreadyExists):
		return "user_already_exists", http.StatusConflict
	case errors.Is(err, authgate.ErrAccountLocked):
		return "account_locked", http.StatusForbidden
	case errors.Is(err, authgate.ErrAccountDeactivated):
		return "account_deactivated", http.StatusForbidden
	case errors.Is(err, authgate.ErrAccountNotLocked),
		errors.Is(err, authgate.ErrAccountNotActive),
		errors.Is(err, authgate.ErrLockConflict),
		errors.Is(err, authgate.ErrAlreadyProvisioned),
		errors.Is(err, authgate.ErrEmailNotVerified),
		errors.Is(err, authgate.ErrEmailAlreadyVerified),
		errors.Is(err, authgate.ErrPasswordAlreadySet),
		errors.Is(err, authgate.ErrPasswordNotSet),
		errors.Is(err, authgate.ErrAccountNotProvisioned),
		errors.Is(err, authgate.ErrOnboardingIncomplete):
		return "state_conflict", http.StatusBadRequest
	case errors.Is(err, authgate.ErrPasswordPolicy):
		return "password_policy_violation", http.StatusBadRequest
	case errors.Is(err, authgate.ErrResetTokenInvalid),
		errors.Is(err, authgate.ErrFallbackMarkerInvalid):
		return "invalid_token", http.StatusBadRequest
	case errors.Is(err, authgate.ErrNoGuardianEnrollment),
		errors.Is(err, authgate.ErrNoPasskeyEnrollment):
		return "no_enrollment", http.StatusBadRequest
	case errors.Is(err, authgate.ErrGuardianResetFailed):
		return "reset_failed", http.StatusBadGateway
	case errors.Is(err, authgate.ErrMFANotRequired):
		return "mfa_not_required", http.StatusBadRequest
	case errors.Is(err, authgate.ErrFlowDisabled):
		return "flow_disabled", http.StatusNotFound
	case errors.Is(err, authgate.ErrIdentityProviderUnavailable),
		errors.Is(err, authgate.ErrStoreUnavailable):
		return "service_unavailable", http.StatusServiceUnavailable
	default:
		return "internal_error", http.StatusInternalServerError
	}
}

// writeOtpOutcome renders an OTP outcome under its mapped HTTP status with
// the outcome fields flattened into the data payload.
func writeOtpOutcome(w http.ResponseWriter, outcome authgate.OtpOutcome, extra map[string]any) {
	data := map[string]any{
		"status": outcome.Status.Code(),
	}
	if outcome.ExpiresInSeconds > 0 {
		data["expires_in_seconds"] = outcome.ExpiresInSeconds
	}
	if outcome.Status == authgate.OtpInvalidCode {
		data["remaining_attempts"] = outcome.RemainingAttempts
	}
	if outcome.RetryAfterSeconds > 0 {
		data["retry_after_seconds"] = outcome.RetryAfterSeconds
	}
	if outcome.Reason != "" {
		data["reason"] = outcome.Reason
	}
	for k, v := range extra {
		data[k] = v
	}

	status := outcome.Status.HTTPStatus()
	if outcome.Ok() {
		writeJSON(w, status, successEnvelope{Success: true, Data: data})
		return
	}
	writeJSON(w, status, map[string]any{
		"success":           false,
		"error":             outcome.Status.Code(),
		"error_description": outcome.Reason,
		"data":              data,
	})
}

func metricName(id authgate.MetricID) string {
	return internaldefs.Name(id)
}
