package http

import (
	"context"
	"time"

	"github.com/hive-api/internal/domain"
	jwtinfra "github.com/hive-api/internal/infrastructure/jwt"
)

// UserRepository is the user store the router hands to every service. The
// dynamo, mongo and memory UserRepo types all satisfy it.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetMany(ctx context.Context, ids []string) ([]domain.User, error)
	SearchByUsername(ctx context.Context, query string, limit int) ([]domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SetStatus(ctx context.Context, userID string, status domain.PresenceStatus) error

	AddFriendRequest(ctx context.Context, receiverID string, req domain.FriendRequest) error
	AcceptFriendRequest(ctx context.Context, userID, senderID string) error
	RemoveFriendRequest(ctx context.Context, userID, senderID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	Block(ctx context.Context, userID, blockedID string) error
	Unblock(ctx context.Context, userID, blockedID string) error
}

// SessionRepository is the session store the router requires.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
	SoftDeleteByUser(ctx context.Context, userID string) error
}

// OTPRepository is the one-time-code store the router requires.
type OTPRepository interface {
	Put(ctx context.Context, o *domain.OTP) error
	Get(ctx context.Context, email string) (*domain.OTP, error)
	Delete(ctx context.Context, email string) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type EventPublisher interface {
	PublishFriendEvent(ctx context.Context, ev domain.FriendEvent) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	SessionRepo SessionRepository
	OTPRepo     OTPRepository
	Mailer      Mailer
	JWTProvider *jwtinfra.Provider

	// Publisher is optional; leave it nil to drop friend events.
	Publisher EventPublisher

	// Now overrides the OTP clock in tests.
	Now func() time.Time
}
