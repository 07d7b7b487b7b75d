package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hive-api/internal/domain"
)

type errorBody struct {
	Error      string `json:"error"`
	ErrorField string `json:"error_field,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// writeJSONError writes a JSON-encoded error response with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeAuthError reports a failed authentication. Field errors keep their
// code; anything else is treated as an internal failure.
func writeAuthError(w http.ResponseWriter, err error) {
	var fe *domain.FieldError
	if errors.As(err, &fe) && errors.Is(err, domain.ErrUnauthorized) {
		writeJSONError(w, http.StatusUnauthorized, errorBody{Error: fe.Message, ErrorField: fe.Field, ErrorCode: fe.Code})
		return
	}
	writeJSONError(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error."})
}
