package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message"`
}

// ErrorEnvelope is the body of every failed request.
type ErrorEnvelope struct {
	Error      string `json:"error"`
	ErrorField string `json:"error_field,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// AuthEnvelope wraps login/register responses.
type AuthEnvelope struct {
	Message string          `json:"message"`
	Bearer  string          `json:"Bearer"`
	Session *domain.Session `json:"session"`
}

// PublicUser is what one user may see of another.
type PublicUser struct {
	ID       string                `json:"id"`
	Username string                `json:"username"`
	Status   domain.PresenceStatus `json:"status"`
}

type UsersEnvelope struct {
	Data []PublicUser `json:"data"`
}

type PendingRequestView struct {
	Sender      PublicUser           `json:"sender"`
	Status      domain.RequestStatus `json:"status"`
	RequestedAt time.Time            `json:"requested_at"`
}

type PendingRequestsEnvelope struct {
	Data []PendingRequestView `json:"data"`
}

func toPublicUser(u *domain.User) PublicUser {
	return PublicUser{ID: u.UserID, Username: u.Username, Status: u.Status}
}

func toPublicUsers(users []domain.User) []PublicUser {
	out := make([]PublicUser, len(users))
	for i := range users {
		out[i] = toPublicUser(&users[i])
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// httpError maps a service error to its status code. Errors that are not
// domain failures are logged and reported as a generic 500.
func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		writeJSON(w, status, ErrorEnvelope{Error: "Internal Server Error."})
		return
	}
	var fe *domain.FieldError
	if !errors.As(err, &fe) {
		writeJSON(w, status, ErrorEnvelope{Error: err.Error()})
		return
	}
	writeJSON(w, status, ErrorEnvelope{Error: fe.Message, ErrorField: fe.Field, ErrorCode: fe.Code})
}

func invalidBody() error {
	return domain.NewFieldError(domain.ErrBadRequest, "body", domain.CodeInvalidInput, "Invalid request body.")
}

// decode reads a JSON body into dst and, when validated is set, checks its
// validate tags.
func decode(r *http.Request, dst interface{}, validated bool) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalidBody()
	}
	if validated {
		if err := validate.Struct(dst); err != nil {
			return domain.NewFieldError(domain.ErrBadRequest, "body", domain.CodeInvalidInput, err.Error())
		}
	}
	return nil
}
