package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/pkg/id"
	"github.com/hive-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// Attribute names used in partial update maps.
const (
	fieldUsername      = "username"
	fieldUsernameLower = "username_lower"
	fieldPasswordHash  = "password_hash"
)

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	RegisterWithSession(ctx context.Context, req domain.RegisterRequest) (*domain.Session, string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	EditUsername(ctx context.Context, userID, newUsername string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type jwtSigner interface {
	Sign(userID, sessionID string) (string, error)
}

type service struct {
	repo        userStore
	sessionRepo sessionStore
	jwtProvider jwtSigner
}

type ServiceDeps struct {
	UserRepo    userStore
	SessionRepo sessionStore
	JWTProvider jwtSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:        deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		jwtProvider: deps.JWTProvider,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, domain.NewFieldError(domain.ErrBadRequest, domain.FieldUser, domain.CodeCredentialsNotGiven, "Please provide all the credentials.")
	}
	if !validate.Email(email) {
		return nil, domain.NewFieldError(domain.ErrBadRequest, domain.FieldEmail, domain.CodeInvalidEmail, "Please provide a valid email.")
	}
	if len(req.Password) < domain.MinPasswordLength {
		return nil, minLengthError()
	}
	if req.Password != req.ConfirmPassword {
		return nil, domain.NewFieldError(domain.ErrBadRequest, domain.FieldConfirmPassword, domain.CodePasswordMismatch, "Passwords do not match.")
	}
	if err := s.ensureUsernameFree(ctx, username, ""); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, domain.NewFieldError(domain.ErrConflict, domain.FieldEmail, domain.CodeEmailTaken, "An account with this email already exists.")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:         id.New(),
		Username:       username,
		UsernameLower:  strings.ToLower(username),
		Email:          email,
		PasswordHash:   string(hash),
		FriendRequests: map[string]domain.FriendRequest{},
		Status:         domain.StatusOnline,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewFieldError(domain.ErrConflict, domain.FieldUser, domain.CodeUsernameTaken, "Username or email already in use.")
		}
		return nil, err
	}
	return u, nil
}

func (s *service) RegisterWithSession(ctx context.Context, req domain.RegisterRequest) (*domain.Session, string, error) {
	u, err := s.Register(ctx, req)
	if err != nil {
		return nil, "", err
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
		return nil, "", err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, sess.SessionID)
	if err != nil {
		return nil, "", err
	}
	sess.User = u
	return sess, bearer, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, domain.NewFieldError(domain.ErrBadRequest, domain.FieldUser, domain.CodeInvalidInput, "Invalid user id.")
	}
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, userNotFound()
	}
	return u, err
}

func (s *service) EditUsername(ctx context.Context, userID, newUsername string) (*domain.User, error) {
	username := strings.TrimSpace(newUsername)
	if username == "" {
		return nil, domain.NewFieldError(domain.ErrBadRequest, domain.FieldUsername, domain.CodeCredentialsNotGiven, "Please provide a username.")
	}
	if err := s.ensureUsernameFree(ctx, username, userID); err != nil {
		return nil, err
	}
	err := s.repo.Update(ctx, userID, map[string]interface{}{
		fieldUsername:      username,
		fieldUsernameLower: strings.ToLower(username),
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, userNotFound()
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// ChangePassword replaces the password and revokes every session of the
// user, including the caller's.
func (s *service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return domain.NewFieldError(domain.ErrBadRequest, domain.FieldPassword, domain.CodeCredentialsNotGiven, "Please provide the old and the new password.")
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.NewFieldError(domain.ErrUnauthorized, domain.FieldPassword, domain.CodePasswordIncorrect, "Old password is incorrect.")
	}
	if oldPassword == newPassword {
		return domain.NewFieldError(domain.ErrBadRequest, domain.FieldPassword, domain.CodePasswordReused, "New password must differ from the old one.")
	}
	if len(newPassword) < domain.MinPasswordLength {
		return minLengthError()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	return s.sessionRepo.SoftDeleteByUser(ctx, userID)
}

// ensureUsernameFree fails with USERNAME_TAKEN when another account (not
// selfID) holds username, compared case-insensitively.
func (s *service) ensureUsernameFree(ctx context.Context, username, selfID string) error {
	existing, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup username: %w", err)
	}
	if existing.UserID == selfID {
		return nil
	}
	return domain.NewFieldError(domain.ErrConflict, domain.FieldUsername, domain.CodeUsernameTaken, "Username is already taken.")
}

func minLengthError() error {
	return domain.NewFieldError(domain.ErrBadRequest, domain.FieldPassword, domain.CodePasswordMinLength,
		fmt.Sprintf("Password must be at least %d characters long.", domain.MinPasswordLength))
}

func userNotFound() error {
	return domain.NewFieldError(domain.ErrNotFound, domain.FieldUser, domain.CodeUserNotFound, "User not found.")
}
