package handler

import (
	"net/http"

	"github.com/hive-api/internal/application/user"
	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/transport/http/middleware"
)

// ProfileHandler handles edits to the caller's own account.
type ProfileHandler struct {
	svc          user.Service
	secureCookie bool
}

func NewProfileHandler(svc user.Service, secureCookie bool) *ProfileHandler {
	return &ProfileHandler{svc: svc, secureCookie: secureCookie}
}

func (h *ProfileHandler) EditProfile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req domain.EditProfileRequest
	if err := decode(r, &req, false); err != nil {
		httpError(w, err)
		return
	}
	u, err := h.svc.EditUsername(r.Context(), callerID, req.NewUsername)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ChangePassword revokes every session of the caller, so the cookie is
// cleared as well.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req domain.ChangePasswordRequest
	if err := decode(r, &req, false); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), callerID, req.OldPassword, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	middleware.ClearTokenCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password changed. Please log in again."})
}
