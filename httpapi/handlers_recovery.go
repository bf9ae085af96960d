package httpapi

import "net/http"

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type emailVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type resetCompleteRequest struct {
	LoginID     string `json:"login_id" validate:"required"`
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type consumeMarkerRequest struct {
	LoginID       string `json:"login_id" validate:"required"`
	FallbackToken string `json:"fallback_token" validate:"required"`
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req loginIDRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.RequestPasswordReset(r.Context(), req.LoginID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeOtpOutcome(w, result.Outcome, map[string]any{
		"masked_email":       result.MaskedEmail,
		"expires_in_seconds": result.ExpiresInSeconds,
	})
}

func (s *Server) handleResetVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.VerifyResetOtp(r.Context(), req.LoginID, req.Code)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	extra := map[string]any{}
	if result.ResetToken != "" {
		extra["reset_token"] = result.ResetToken
		extra["token_expires_in_seconds"] = result.ExpiresInSeconds
	}
	writeOtpOutcome(w, result.Outcome, extra)
}

func (s *Server) handleResetComplete(w http.ResponseWriter, r *http.Request) {
	var req resetCompleteRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.CompletePasswordReset(r.Context(), req.LoginID, req.ResetToken, req.NewPassword); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{
		"status": "password_reset",
	})
}

func (s *Server) handleResetSendEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.SendResetEmail(r.Context(), req.Email); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{
		"status": "email_sent",
	})
}

func (s *Server) handleGuardianSendOtp(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.GuardianSendOtp(r.Context(), req.Email)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeOtpOutcome(w, result.Outcome, map[string]any{
		"masked_email": result.MaskedEmail,
	})
}

func (s *Server) handleGuardianVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req emailVerifyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.GuardianVerifyAndReset(r.Context(), req.Email, req.Code)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeOtpOutcome(w, result.Outcome, map[string]any{
		"deleted_count": result.DeletedCount,
	})
}

func (s *Server) handlePasskeyFallbackSendOtp(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.PasskeyFallbackSendOtp(r.Context(), req.Email)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeOtpOutcome(w, result.Outcome, map[string]any{
		"masked_email": result.MaskedEmail,
	})
}

func (s *Server) handlePasskeyFallbackVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req emailVerifyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.PasskeyFallbackVerify(r.Context(), req.Email, req.Code)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	extra := map[string]any{}
	if result.FallbackToken != "" {
		extra["fallback_token"] = result.FallbackToken
		extra["token_expires_in_seconds"] = result.ExpiresInSeconds
	}
	writeOtpOutcome(w, result.Outcome, extra)
}

func (s *Server) handlePasskeyFallbackConsume(w http.ResponseWriter, r *http.Request) {
	var req consumeMarkerRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.engine.ConsumeFallbackMarker(r.Context(), req.LoginID, req.FallbackToken); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{
		"status": "fallback_authorized",
	})
}
