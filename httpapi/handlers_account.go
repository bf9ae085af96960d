package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authgate "github.com/obsidianbank/authgate"
)

type registerAccountRequest struct {
	LoginID   string `json:"login_id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

type provisionAccountRequest struct {
	LoginID        string `json:"login_id" validate:"required"`
	ProviderUserID string `json:"provider_user_id" validate:"required"`
	Force          bool   `json:"force"`
}

type activateAccountRequest struct {
	LoginID string `json:"login_id" validate:"required"`
	Force   bool   `json:"force"`
}

type lockAccountRequest struct {
	LoginID  string `json:"login_id" validate:"required"`
	LockType string `json:"lock_type" validate:"required,oneof=bank self"`
	Force    bool   `json:"force"`
}

type deactivateAccountRequest struct {
	LoginID string `json:"login_id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

func accountPayload(account *authgate.UserAccount) map[string]any {
	return map[string]any{
		"id":               account.ID,
		"login_id":         account.LoginID,
		"masked_email":     authgate.MaskEmail(account.Email),
		"first_name":       account.FirstName,
		"last_name":        account.LastName,
		"user_type":        account.UserType,
		"roles":            account.Roles,
		"status":           account.Status.String(),
		"lock_type":        account.LockType.String(),
		"email_verified":   account.EmailVerified,
		"password_set":     account.PasswordSet,
		"mfa_enrolled":     account.MfaEnrolled,
		"passkey_enrolled": account.PasskeyEnrolled,
		"provisioned":      account.Provisioned(),
	}
}

func (s *Server) handleAccountRegister(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	account, err := s.engine.RegisterAccount(r.Context(), req.LoginID, req.Email, req.FirstName, req.LastName)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, accountPayload(account))
}

func (s *Server) handleAccountProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	account, err := s.engine.ProvisionAccount(r.Context(), req.LoginID, req.ProviderUserID, req.Force)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, accountPayload(account))
}

func (s *Server) handleAccountActivate(w http.ResponseWriter, r *http.Request) {
	var req activateAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	account, err := s.engine.ActivateAccount(r.Context(), req.LoginID, req.Force)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, accountPayload(account))
}

func (s *Server) handleAccountLock(w http.ResponseWriter, r *http.Request) {
	var req lockAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	lockType := authgate.LockByBank
	if req.LockType == "self" {
		lockType = authgate.LockBySelf
	}

	account, err := s.engine.LockAccount(r.Context(), req.LoginID, lockType, req.Force)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, accountPayload(account))
}

func (s *Server) handleAccountUnlock(w http.ResponseWriter, r *http.Request) {
	var req loginIDRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	account, err := s.engine.UnlockAccount(r.Context(), req.LoginID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, accountPayload(account))
}

func (s *Server) handleAccountDeactivate(w http.ResponseWriter, r *http.Request) {
	var req deactivateAccountRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	account, err := s.engine.DeactivateAccount(r.Context(), req.LoginID, req.Reason)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, accountPayload(account))
}

func (s *Server) handleAccountGet(w http.ResponseWriter, r *http.Request) {
	loginID := chi.URLParam(r, "loginID")
	if loginID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "login ID is required")
		return
	}

	account, err := s.engine.GetAccount(r.Context(), loginID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, accountPayload(account))
}
