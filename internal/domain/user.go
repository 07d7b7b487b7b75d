package domain

import (
	"cmp"
	"slices"
	"time"
)

// PresenceStatus is the online/offline flag maintained by the session lifecycle.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// MinPasswordLength is the shortest password accepted anywhere a password is set.
const MinPasswordLength = 8

type User struct {
	UserID         string                   `json:"id" dynamodbav:"user_id" bson:"_id"`
	Username       string                   `json:"username" dynamodbav:"username" bson:"username"`
	UsernameLower  string                   `json:"-" dynamodbav:"username_lower" bson:"username_lower"`
	Email          string                   `json:"email" dynamodbav:"email" bson:"email"`
	PasswordHash   string                   `json:"-" dynamodbav:"password_hash" bson:"password_hash"`
	EmailVerified  bool                     `json:"email_verified" dynamodbav:"email_verified" bson:"email_verified"`
	Friends        []string                 `json:"friends" dynamodbav:"friends,stringset,omitempty" bson:"friends"`
	FriendRequests map[string]FriendRequest `json:"-" dynamodbav:"friend_requests" bson:"friend_requests"`
	Blocked        []string                 `json:"blocked" dynamodbav:"blocked,stringset,omitempty" bson:"blocked"`
	Status         PresenceStatus           `json:"status" dynamodbav:"status" bson:"status"`
	CreatedAt      time.Time                `json:"created" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt      time.Time                `json:"updated" dynamodbav:"updated_at" bson:"updated_at"`
}

// IsFriendOf reports whether otherID is in the user's friend set.
func (u *User) IsFriendOf(otherID string) bool {
	return slices.Contains(u.Friends, otherID)
}

// HasBlocked reports whether the user has blocked otherID.
func (u *User) HasBlocked(otherID string) bool {
	return slices.Contains(u.Blocked, otherID)
}

// HasRequestFrom reports whether a friend-request entry from senderID exists,
// whatever its status.
func (u *User) HasRequestFrom(senderID string) bool {
	_, ok := u.FriendRequests[senderID]
	return ok
}

// PendingRequests returns the pending entries ordered by request time.
func (u *User) PendingRequests() []FriendRequest {
	out := make([]FriendRequest, 0, len(u.FriendRequests))
	for _, fr := range u.FriendRequests {
		if fr.Status == RequestPending {
			out = append(out, fr)
		}
	}
	slices.SortFunc(out, func(a, b FriendRequest) int {
		if c := a.RequestedAt.Compare(b.RequestedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Sender, b.Sender)
	})
	return out
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EditProfileRequest struct {
	NewUsername string `json:"new_username" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type SetNewPasswordRequest struct {
	Email           string `json:"email" validate:"required"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}
