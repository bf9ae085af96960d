package httpapi

import (
	"net/http"

	authgate "github.com/obsidianbank/authgate"
)

type stepUpStartRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Message  string `json:"message"`
}

type stepUpVerifyRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	OOBCode  string `json:"oob_code" validate:"required"`
}

type refreshTokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleStepUpStart(w http.ResponseWriter, r *http.Request) {
	var req stepUpStartRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	oobCode, err := s.engine.StepUpStart(r.Context(), req.MFAToken, req.Message)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{
		"oob_code": oobCode,
	})
}

func (s *Server) handleStepUpVerify(w http.ResponseWriter, r *http.Request) {
	var req stepUpVerifyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.StepUpPoll(r.Context(), req.MFAToken, req.OOBCode)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pushResultPayload(result.Status, result.Grant))
}

func (s *Server) handleStepUpRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.StepUpRefreshToken(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"mfa_token":  result.MFAToken,
		"expires_at": result.ExpiresAt,
	})
}

// pushResultPayload flattens a push approval status and its optional grant
// into one response payload shared by step-up and MFA confirmation.
func pushResultPayload(status authgate.PushApprovalStatus, grant *authgate.MFATokenGrant) map[string]any {
	data := map[string]any{
		"status": status.Code(),
	}
	if grant != nil {
		data["access_token"] = grant.AccessToken
		data["id_token"] = grant.IDToken
		data["expires_in"] = grant.ExpiresIn
		if grant.RefreshToken != "" {
			data["refresh_token"] = grant.RefreshToken
		}
	}
	return data
}
