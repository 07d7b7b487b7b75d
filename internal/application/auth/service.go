package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits = 6

	fieldEmailVerified = "email_verified"
	fieldPasswordHash  = "password_hash"
)

type Service interface {
	IssueOTP(ctx context.Context, email, mode string) error
	VerifyOTP(ctx context.Context, email, code string) (mode string, err error)
	SetNewPassword(ctx context.Context, req domain.SetNewPasswordRequest) error
}

type otpStore interface {
	Put(ctx context.Context, o *domain.OTP) error
	Get(ctx context.Context, email string) (*domain.OTP, error)
	Delete(ctx context.Context, email string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type service struct {
	otpRepo     otpStore
	userRepo    userStore
	sessionRepo sessionStore
	mailer      mailer
	otpTTL      time.Duration
	resetWindow time.Duration
	now         func() time.Time
}

type ServiceDeps struct {
	OTPRepo             otpStore
	UserRepo            userStore
	SessionRepo         sessionStore
	Mailer              mailer
	OTPTTL              time.Duration
	PasswordResetWindow time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		otpRepo:     deps.OTPRepo,
		userRepo:    deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		mailer:      deps.Mailer,
		otpTTL:      deps.OTPTTL,
		resetWindow: deps.PasswordResetWindow,
		now:         now,
	}
}

// IssueOTP replaces any record for email with a fresh code and mails it. If
// the mail cannot be sent the record is removed again.
func (s *service) IssueOTP(ctx context.Context, email, mode string) error {
	email = normalizeEmail(email)
	if !validate.Email(email) {
		return domain.NewFieldError(domain.ErrBadRequest, domain.FieldEmail, domain.CodeInvalidEmail, "Please provide a valid email.")
	}
	if mode != domain.ModeVerification && mode != domain.ModePasswordReset {
		return domain.NewFieldError(domain.ErrBadRequest, domain.FieldOTP, domain.CodeInvalidInput, "Unknown OTP mode.")
	}
	code, err := newCode()
	if err != nil {
		return err
	}
	rec := &domain.OTP{Email: email, Code: code, Mode: mode}
	rec.SetExpiry(s.now().Add(s.otpTTL))
	if err := s.otpRepo.Put(ctx, rec); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	subject, body := otpMessage(mode, code, s.otpTTL)
	if err := s.mailer.SendEmail(email, subject, body); err != nil {
		slog.Error("otp dispatch failed", "email", email, "mode", mode, "err", err)
		if delErr := s.otpRepo.Delete(ctx, email); delErr != nil {
			slog.Warn("failed to discard undelivered otp", "email", email, "err", delErr)
		}
		return domain.NewFieldError(domain.ErrUnavailable, domain.FieldOTP, domain.CodeOTPNotSent, "Failed to send OTP. Please try again.")
	}
	return nil
}

// VerifyOTP consumes a matching, unexpired code and returns its mode.
func (s *service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	rec, err := s.otpRepo.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", otpIncorrect()
	}
	if err != nil {
		return "", err
	}
	if rec.Mode == domain.ModeResetGranted || subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return "", otpIncorrect()
	}
	if rec.ExpiredAt(s.now()) {
		return "", domain.NewFieldError(domain.ErrBadRequest, domain.FieldOTP, domain.CodeOTPExpired, "OTP has expired.")
	}

	switch rec.Mode {
	case domain.ModePasswordReset:
		grant := &domain.OTP{Email: email, Mode: domain.ModeResetGranted}
		grant.SetExpiry(s.now().Add(s.resetWindow))
		if err := s.otpRepo.Put(ctx, grant); err != nil {
			return "", fmt.Errorf("store reset grant: %w", err)
		}
	default:
		if err := s.otpRepo.Delete(ctx, email); err != nil {
			return "", fmt.Errorf("consume otp: %w", err)
		}
		s.markVerified(ctx, email)
	}
	return rec.Mode, nil
}

func (s *service) markVerified(ctx context.Context, email string) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("failed to load user for email verification", "email", email, "err", err)
		}
		return
	}
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldEmailVerified: true}); err != nil {
		slog.Warn("failed to mark email verified", "user_id", u.UserID, "err", err)
	}
}

// SetNewPassword overwrites the password of the account behind email. It
// requires a reset grant left by a verified password_reset OTP and revokes
// all sessions of the account.
func (s *service) SetNewPassword(ctx context.Context, req domain.SetNewPasswordRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return domain.NewFieldError(domain.ErrBadRequest, domain.FieldPassword, domain.CodeCredentialsNotGiven, "Please provide all the credentials.")
	}
	if req.NewPassword != req.ConfirmPassword {
		return domain.NewFieldError(domain.ErrBadRequest, domain.FieldConfirmPassword, domain.CodePasswordMismatch, "Passwords do not match.")
	}
	if len(req.NewPassword) < domain.MinPasswordLength {
		return domain.NewFieldError(domain.ErrBadRequest, domain.FieldPassword, domain.CodePasswordMinLength,
			fmt.Sprintf("Password must be at least %d characters long.", domain.MinPasswordLength))
	}
	u, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewFieldError(domain.ErrNotFound, domain.FieldEmail, domain.CodeUserNotFound, "No account exists with this email.")
	}
	if err != nil {
		return err
	}

	grant, err := s.otpRepo.Get(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if grant == nil || grant.Mode != domain.ModeResetGranted || grant.ExpiredAt(s.now()) {
		return domain.NewFieldError(domain.ErrForbidden, domain.FieldOTP, domain.CodeResetNotAuthorized, "Verify the password reset OTP first.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	// The grant survives a failed write so the user can retry.
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	if err := s.otpRepo.Delete(ctx, email); err != nil {
		slog.Warn("failed to consume reset grant", "email", email, "err", err)
	}
	if err := s.sessionRepo.SoftDeleteByUser(ctx, u.UserID); err != nil {
		slog.Warn("failed to revoke sessions after password reset", "user_id", u.UserID, "err", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func otpIncorrect() error {
	return domain.NewFieldError(domain.ErrBadRequest, domain.FieldOTP, domain.CodeOTPIncorrect, "OTP is incorrect.")
}

func newCode() (string, error) {
	limit := big.NewInt(1)
	for range otpDigits {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func otpMessage(mode, code string, ttl time.Duration) (subject, body string) {
	if mode == domain.ModePasswordReset {
		subject = "Reset your password"
	} else {
		subject = "Verify your email"
	}
	body = fmt.Sprintf("Your one-time code is %s. It expires in %s.", code, ttl)
	return subject, body
}
