package handler

import (
	"net/http"

	"github.com/hive-api/internal/application/auth"
	"github.com/hive-api/internal/domain"
)

// OTPHandler handles one-time-code issue, verification and password reset.
type OTPHandler struct {
	svc auth.Service
}

func NewOTPHandler(svc auth.Service) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOTPRequest
	if err := decode(r, &req, false); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.IssueOTP(r.Context(), req.Email, req.Mode); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent."})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decode(r, &req, false); err != nil {
		httpError(w, err)
		return
	}
	mode, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		Mode    string `json:"mode"`
	}{Message: "OTP verified.", Mode: mode})
}

func (h *OTPHandler) SetNewPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.SetNewPasswordRequest
	if err := decode(r, &req, false); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.SetNewPassword(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password updated."})
}
