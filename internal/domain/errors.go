package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUnavailable  = errors.New("unavailable")
)

// Error fields reported back to clients alongside a FieldError.
const (
	FieldUser            = "user"
	FieldEmail           = "email"
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldFriendRequest   = "friend_request"
	FieldOTP             = "otp"
	FieldToken           = "token"
)

// Machine-readable error codes.
const (
	CodeCredentialsNotGiven = "CREDENTIALS_NOT_GIVEN"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidEmail        = "PROVIDE_VALID_EMAIL"
	CodePasswordMinLength   = "PASSWORD_MIN_LENGTH_NOT_MET"
	CodePasswordMismatch    = "PASSWORD_MISMATCH"
	CodePasswordIncorrect   = "PASSWORD_INCORRECT"
	CodePasswordReused      = "PASSWORD_REUSED"
	CodeUsernameTaken       = "USERNAME_TAKEN"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeAlreadyFriends      = "ALREADY_FRIENDS"
	CodeRequestAlreadySent  = "FRIEND_REQUEST_ALREADY_SENT"
	CodeRequestNotFound     = "FRIEND_REQUEST_NOT_FOUND"
	CodeUserBlocked         = "USER_BLOCKED"
	CodeOTPNotSent          = "OTP_NOT_SENT"
	CodeOTPIncorrect        = "OTP_INCORRECT"
	CodeOTPExpired          = "OTP_EXPIRED"
	CodeResetNotAuthorized  = "RESET_NOT_AUTHORIZED"
	CodeTokenNotFound       = "TOKEN_NOT_FOUND"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeSessionRevoked      = "SESSION_REVOKED"
)

// FieldError is a typed failure that names the offending input field and a
// stable code. It unwraps to Kind so callers can keep using errors.Is.
type FieldError struct {
	Kind    error
	Field   string
	Code    string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

func (e *FieldError) Unwrap() error { return e.Kind }

// NewFieldError builds a FieldError of the given sentinel kind.
func NewFieldError(kind error, field, code, message string) *FieldError {
	return &FieldError{Kind: kind, Field: field, Code: code, Message: message}
}

// HasCode reports whether err carries a FieldError with the given code.
func HasCode(err error, code string) bool {
	var fe *FieldError
	return errors.As(err, &fe) && fe.Code == code
}
