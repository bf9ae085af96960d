package httpapi

import "net/http"

type mfaTokenRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
}

type mfaAssociateRequest struct {
	MFAToken          string `json:"mfa_token" validate:"required"`
	AuthenticatorType string `json:"authenticator_type" validate:"required,oneof=push totp"`
}

type mfaConfirmRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

type mfaPollRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	OOBCode  string `json:"oob_code" validate:"required"`
}

type mfaSendChallengeRequest struct {
	MFAToken        string `json:"mfa_token" validate:"required"`
	AuthenticatorID string `json:"authenticator_id" validate:"required"`
	ChallengeType   string `json:"challenge_type" validate:"required"`
}

type mfaVerifyChallengeRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code"`
	OOBCode  string `json:"oob_code"`
}

func (s *Server) handleMfaEnrollments(w http.ResponseWriter, r *http.Request) {
	var req mfaTokenRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	enrollments, err := s.engine.ListMfaEnrollments(r.Context(), req.MFAToken)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(enrollments))
	for _, a := range enrollments {
		items = append(items, map[string]any{
			"id":        a.ID,
			"type":      a.Type,
			"confirmed": a.Confirmed,
			"name":      a.Name,
		})
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"enrollments": items,
	})
}

func (s *Server) handleMfaAssociate(w http.ResponseWriter, r *http.Request) {
	var req mfaAssociateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	association, err := s.engine.StartMfaEnrollment(r.Context(), req.MFAToken, req.AuthenticatorType)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"authenticator_type": association.AuthenticatorType,
		"secret":             association.Secret,
		"barcode_uri":        association.BarcodeURI,
		"oob_code":           association.OOBCode,
		"recovery_codes":     association.RecoveryCodes,
	})
}

func (s *Server) handleMfaConfirm(w http.ResponseWriter, r *http.Request) {
	var req mfaConfirmRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.ConfirmMfaEnrollment(r.Context(), req.MFAToken, req.Code)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pushResultPayload(result.Status, result.Grant))
}

func (s *Server) handleMfaPoll(w http.ResponseWriter, r *http.Request) {
	var req mfaPollRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.PollMfaEnrollment(r.Context(), req.MFAToken, req.OOBCode)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pushResultPayload(result.Status, result.Grant))
}

func (s *Server) handleMfaSendChallenge(w http.ResponseWriter, r *http.Request) {
	var req mfaSendChallengeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	info, err := s.engine.SendMfaChallenge(r.Context(), req.MFAToken, req.AuthenticatorID, req.ChallengeType)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{
		"challenge_type": info.ChallengeType,
		"oob_code":       info.OOBCode,
	})
}

func (s *Server) handleMfaVerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req mfaVerifyChallengeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" && req.OOBCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "either code or oob_code must be provided")
		return
	}

	result, err := s.engine.VerifyMfaChallenge(r.Context(), req.MFAToken, req.Code, req.OOBCode)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pushResultPayload(result.Status, result.Grant))
}
