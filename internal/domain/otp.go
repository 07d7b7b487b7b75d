package domain

import "time"

// OTP modes. ModeResetGranted is written by a successful password_reset
// verification and consumed by the password reset itself.
const (
	ModeVerification  = "verification"
	ModePasswordReset = "password_reset"
	ModeResetGranted  = "reset_granted"
)

// OTP is the single active one-time code for an email address.
// ExpiresAtNano is the exact expiry in Unix nanoseconds. ExpiresAt is the
// same instant rounded up to whole seconds and only feeds the store's TTL.
type OTP struct {
	Email         string `json:"email" dynamodbav:"email"`
	Code          string `json:"code" dynamodbav:"code"`
	Mode          string `json:"mode" dynamodbav:"mode"`
	ExpiresAt     int64  `json:"expires_at" dynamodbav:"expires_at"`
	ExpiresAtNano int64  `json:"expires_at_ns" dynamodbav:"expires_at_ns"`
}

// SetExpiry stamps both expiry fields from t.
func (o *OTP) SetExpiry(t time.Time) {
	o.ExpiresAtNano = t.UnixNano()
	o.ExpiresAt = t.Unix()
	if t.Nanosecond() > 0 {
		o.ExpiresAt++
	}
}

// ExpiredAt reports whether now is past the expiry. Records written
// without ExpiresAtNano are judged on whole seconds.
func (o *OTP) ExpiredAt(now time.Time) bool {
	if o.ExpiresAtNano != 0 {
		return now.UnixNano() > o.ExpiresAtNano
	}
	return now.Unix() > o.ExpiresAt
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Mode  string `json:"mode" validate:"required,oneof=verification password_reset"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}
