package httpapi

import "net/http"

type loginIDRequest struct {
	LoginID string `json:"login_id" validate:"required"`
}

type verifyOtpRequest struct {
	LoginID string `json:"login_id" validate:"required"`
	Code    string `json:"code" validate:"required"`
}

type setPasswordRequest struct {
	LoginID  string `json:"login_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type completeOnboardingRequest struct {
	LoginID     string `json:"login_id" validate:"required"`
	MfaEnrolled bool   `json:"mfa_enrolled"`
}

func (s *Server) handleOnboardingCheck(w http.ResponseWriter, r *http.Request) {
	var req loginIDRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	status, err := s.engine.CheckOnboarding(r.Context(), req.LoginID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"login_id":                    status.LoginID,
		"masked_email":                status.MaskedEmail,
		"first_name":                  status.FirstName,
		"last_name":                   status.LastName,
		"account_status":              status.Status.String(),
		"requires_email_verification": status.RequiresEmailVerification,
		"requires_password_setup":     status.RequiresPasswordSetup,
		"requires_mfa_enrollment":     status.RequiresMfaEnrollment,
	})
}

func (s *Server) handleOnboardingSendOtp(w http.ResponseWriter, r *http.Request) {
	var req loginIDRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.SendVerificationOtp(r.Context(), req.LoginID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeOtpOutcome(w, result.Outcome, map[string]any{
		"masked_email": result.MaskedEmail,
	})
}

func (s *Server) handleOnboardingVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.VerifyEmailOtp(r.Context(), req.LoginID, req.Code)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeOtpOutcome(w, result.Outcome, map[string]any{
		"requires_password_setup": result.RequiresPasswordSetup,
		"requires_mfa_enrollment": result.RequiresMfaEnrollment,
	})
}

func (s *Server) handleOnboardingSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.EstablishPassword(r.Context(), req.LoginID, req.Password)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"mfa_required": result.MFARequired,
		"mfa_token":    result.MFAToken,
	})
}

func (s *Server) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	var req completeOnboardingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	status, err := s.engine.CompleteOnboarding(r.Context(), req.LoginID, req.MfaEnrolled)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"login_id":       status.LoginID,
		"account_status": status.Status.String(),
	})
}
