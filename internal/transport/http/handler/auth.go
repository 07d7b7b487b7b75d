package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hive-api/internal/application/session"
	"github.com/hive-api/internal/application/user"
	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/transport/http/middleware"
)

// CookieSettings controls the token cookie written on login and register.
type CookieSettings struct {
	MaxAge time.Duration
	Secure bool
}

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	users    user.Service
	sessions session.Service
	cookie   CookieSettings
}

func NewAuthHandler(users user.Service, sessions session.Service, cookie CookieSettings) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, cookie: cookie}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req, false); err != nil {
		httpError(w, err)
		return
	}
	sess, bearer, err := h.users.RegisterWithSession(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	middleware.SetTokenCookie(w, bearer, h.cookie.MaxAge, h.cookie.Secure)
	writeJSON(w, http.StatusCreated, AuthEnvelope{Message: "User registered.", Bearer: bearer, Session: sess})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req, false); err != nil {
		httpError(w, err)
		return
	}
	res, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	middleware.SetTokenCookie(w, res.Bearer, h.cookie.MaxAge, h.cookie.Secure)
	writeJSON(w, http.StatusOK, AuthEnvelope{Message: "Logged in.", Bearer: res.Bearer, Session: res.Session})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, notAuthenticated())
		return
	}
	if err := h.sessions.Logout(r.Context(), claims.SessionID, claims.UserID); err != nil {
		httpError(w, err)
		return
	}
	middleware.ClearTokenCookie(w, h.cookie.Secure)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Logged out."})
}

// IsAuthenticated is public: it reports on whatever token the client sends
// and clears the cookie when that token is no longer good.
func (h *AuthHandler) IsAuthenticated(w http.ResponseWriter, r *http.Request) {
	claims, err := h.sessions.Authenticate(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			middleware.ClearTokenCookie(w, h.cookie.Secure)
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		UserID  string `json:"user_id"`
	}{Message: "Authenticated.", UserID: claims.UserID})
}

// Details returns the caller's own account.
func (h *AuthHandler) Details(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	u, err := h.users.Get(r.Context(), callerID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UserDetails returns another account; callers asking about themselves get
// the full view.
func (h *AuthHandler) UserDetails(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	targetID := chi.URLParam(r, "id")
	u, err := h.users.Get(r.Context(), targetID)
	if err != nil {
		httpError(w, err)
		return
	}
	if targetID == callerID {
		writeJSON(w, http.StatusOK, u)
		return
	}
	writeJSON(w, http.StatusOK, toPublicUser(u))
}

func notAuthenticated() error {
	slog.Warn("authenticated route reached without claims")
	return domain.NewFieldError(domain.ErrUnauthorized, domain.FieldToken, domain.CodeTokenNotFound, "Not authenticated.")
}
