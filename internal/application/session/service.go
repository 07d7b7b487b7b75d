package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hive-api/internal/domain"
	jwtinfra "github.com/hive-api/internal/infrastructure/jwt"
	"github.com/hive-api/internal/pkg/id"
	"github.com/hive-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type LoginResult struct {
	Bearer  string
	Session *domain.Session
}

type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, sessionID, userID string) error
	Authenticate(ctx context.Context, token string) (*jwtinfra.Claims, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetStatus(ctx context.Context, userID string, status domain.PresenceStatus) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
}

type tokenProvider interface {
	Sign(userID, sessionID string) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type service struct {
	userRepo    userStore
	sessionRepo sessionStore
	jwtProvider tokenProvider
}

type ServiceDeps struct {
	UserRepo    userStore
	SessionRepo sessionStore
	JWTProvider tokenProvider
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:    deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		jwtProvider: deps.JWTProvider,
	}
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, domain.NewFieldError(domain.ErrBadRequest, domain.FieldUser, domain.CodeCredentialsNotGiven, "Please provide all the credentials.")
	}
	if !validate.Email(email) {
		return nil, domain.NewFieldError(domain.ErrBadRequest, domain.FieldEmail, domain.CodeInvalidEmail, "Please provide a valid email.")
	}
	u, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewFieldError(domain.ErrNotFound, domain.FieldEmail, domain.CodeUserNotFound, "No account exists with this email.")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.NewFieldError(domain.ErrUnauthorized, domain.FieldPassword, domain.CodePasswordIncorrect, "Password is incorrect.")
	}

	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		UserID:    u.UserID,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, sess.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetStatus(ctx, u.UserID, domain.StatusOnline); err != nil {
		slog.Warn("failed to set presence", "user_id", u.UserID, "status", domain.StatusOnline, "err", err)
	} else {
		u.Status = domain.StatusOnline
	}
	sess.User = u
	return &LoginResult{Bearer: bearer, Session: sess}, nil
}

func (s *service) Logout(ctx context.Context, sessionID, userID string) error {
	if err := s.sessionRepo.Disable(ctx, sessionID); err != nil {
		return err
	}
	if err := s.userRepo.SetStatus(ctx, userID, domain.StatusOffline); err != nil {
		slog.Warn("failed to set presence", "user_id", userID, "status", domain.StatusOffline, "err", err)
	}
	return nil
}

// Authenticate verifies the token signature and expiry and that its session
// has not been revoked.
func (s *service) Authenticate(ctx context.Context, token string) (*jwtinfra.Claims, error) {
	if token == "" {
		return nil, domain.NewFieldError(domain.ErrUnauthorized, domain.FieldToken, domain.CodeTokenNotFound, "Not authenticated.")
	}
	claims, err := s.jwtProvider.Verify(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessionRepo.Get(ctx, claims.SessionID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && (!sess.Enable || sess.UserID != claims.UserID)) {
		return nil, domain.NewFieldError(domain.ErrUnauthorized, domain.FieldToken, domain.CodeSessionRevoked, "Session is no longer active. Please log in again.")
	}
	if err != nil {
		return nil, err
	}
	return claims, nil
}
