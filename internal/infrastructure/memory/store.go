// Package memory is a process-local store with the same contracts as the
// dynamo and mongo repositories. It backs DB_DRIVER=memory and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hive-api/internal/domain"
)

// UserRepo keeps users in a map guarded by one lock, so two-document edges
// are trivially atomic.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]*domain.User)}
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; ok {
		return fmt.Errorf("user %s exists: %w", u.UserID, domain.ErrConflict)
	}
	for _, other := range r.users {
		if other.Email == u.Email || other.UsernameLower == u.UsernameLower {
			return fmt.Errorf("user %s: %w", u.Username, domain.ErrConflict)
		}
	}
	cp := clone(u)
	if cp.FriendRequests == nil {
		cp.FriendRequests = map[string]domain.FriendRequest{}
	}
	r.users[u.UserID] = cp
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, notFound("user")
	}
	return clone(u), nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.findFirst(func(u *domain.User) bool { return u.UsernameLower == strings.ToLower(username) })
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.findFirst(func(u *domain.User) bool { return u.Email == strings.ToLower(email) })
}

func (r *UserRepo) GetMany(_ context.Context, ids []string) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *clone(u))
		}
	}
	return out, nil
}

func (r *UserRepo) SearchByUsername(_ context.Context, query string, limit int) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	out := []domain.User{}
	for _, u := range r.users {
		if strings.Contains(u.UsernameLower, q) {
			out = append(out, *clone(u))
		}
	}
	slices.SortFunc(out, func(a, b domain.User) int { return strings.Compare(a.UsernameLower, b.UsernameLower) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update understands the attribute names the services write. Changes are
// staged on a copy, so a rejected update leaves the record untouched.
func (r *UserRepo) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	return r.mutate(userID, func(u *domain.User) error {
		next := *u
		for k, v := range updates {
			ok := true
			switch k {
			case "username":
				next.Username, ok = v.(string)
			case "username_lower":
				next.UsernameLower, ok = v.(string)
			case "password_hash":
				next.PasswordHash, ok = v.(string)
			case "email_verified":
				next.EmailVerified, ok = v.(bool)
			case "status":
				next.Status, ok = v.(domain.PresenceStatus)
			default:
				return fmt.Errorf("unsupported field %q: %w", k, domain.ErrBadRequest)
			}
			if !ok {
				return fmt.Errorf("field %q has type %T: %w", k, v, domain.ErrBadRequest)
			}
		}
		*u = next
		return nil
	})
}

func (r *UserRepo) SetStatus(_ context.Context, userID string, status domain.PresenceStatus) error {
	return r.mutate(userID, func(u *domain.User) error {
		u.Status = status
		return nil
	})
}

func (r *UserRepo) AddFriendRequest(_ context.Context, receiverID string, req domain.FriendRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[receiverID]
	if !ok || u.HasRequestFrom(req.Sender) || u.IsFriendOf(req.Sender) {
		return fmt.Errorf("friend request from %s: %w", req.Sender, domain.ErrConflict)
	}
	u.FriendRequests[req.Sender] = req
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepo) AcceptFriendRequest(_ context.Context, userID, senderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return notFound("user")
	}
	fr, ok := u.FriendRequests[senderID]
	if !ok || fr.Status != domain.RequestPending {
		return notFound("pending request")
	}
	sender, ok := r.users[senderID]
	if !ok {
		return notFound("sender")
	}
	delete(u.FriendRequests, senderID)
	u.Friends = addMember(u.Friends, senderID)
	sender.Friends = addMember(sender.Friends, userID)
	return nil
}

func (r *UserRepo) RemoveFriendRequest(_ context.Context, userID, senderID string) error {
	return r.mutate(userID, func(u *domain.User) error {
		if !u.HasRequestFrom(senderID) {
			return notFound("request")
		}
		delete(u.FriendRequests, senderID)
		return nil
	})
}

func (r *UserRepo) RemoveFriend(_ context.Context, userID, friendID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	f, ok2 := r.users[friendID]
	if !ok || !ok2 {
		return notFound("user")
	}
	u.Friends = removeMember(u.Friends, friendID)
	f.Friends = removeMember(f.Friends, userID)
	return nil
}

func (r *UserRepo) Block(_ context.Context, userID, blockedID string) error {
	return r.mutate(userID, func(u *domain.User) error {
		u.Blocked = addMember(u.Blocked, blockedID)
		return nil
	})
}

func (r *UserRepo) Unblock(_ context.Context, userID, blockedID string) error {
	return r.mutate(userID, func(u *domain.User) error {
		u.Blocked = removeMember(u.Blocked, blockedID)
		return nil
	})
}

func (r *UserRepo) mutate(userID string, fn func(u *domain.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return notFound("user")
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepo) findFirst(match func(u *domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, notFound("user")
}

func clone(u *domain.User) *domain.User {
	cp := *u
	cp.Friends = slices.Clone(u.Friends)
	cp.Blocked = slices.Clone(u.Blocked)
	if u.FriendRequests != nil {
		cp.FriendRequests = make(map[string]domain.FriendRequest, len(u.FriendRequests))
		for k, v := range u.FriendRequests {
			cp.FriendRequests[k] = v
		}
	}
	return &cp
}

func addMember(set []string, id string) []string {
	if slices.Contains(set, id) {
		return set
	}
	return append(set, id)
}

func removeMember(set []string, id string) []string {
	return slices.DeleteFunc(set, func(s string) bool { return s == id })
}

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, domain.ErrNotFound)
}

// SessionRepo keeps sessions by id.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]domain.Session)}
}

func (r *SessionRepo) Put(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.User = nil
	r.sessions[s.SessionID] = cp
	return nil
}

func (r *SessionRepo) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, notFound("session")
	}
	return &s, nil
}

func (r *SessionRepo) Disable(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.Enable = false
		s.UpdatedAt = time.Now().UTC()
		r.sessions[sessionID] = s
	}
	return nil
}

func (r *SessionRepo) SoftDeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, s := range r.sessions {
		if s.UserID == userID {
			s.Enable = false
			s.UpdatedAt = time.Now().UTC()
			r.sessions[sid] = s
		}
	}
	return nil
}

// OTPRepo keeps one record per email. Expired records are left for the
// reader to reject, as with the store TTLs.
type OTPRepo struct {
	mu   sync.Mutex
	recs map[string]domain.OTP
}

func NewOTPRepo() *OTPRepo {
	return &OTPRepo{recs: make(map[string]domain.OTP)}
}

func (r *OTPRepo) Put(_ context.Context, o *domain.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[o.Email] = *o
	return nil
}

func (r *OTPRepo) Get(_ context.Context, email string) (*domain.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.recs[email]
	if !ok {
		return nil, notFound("otp")
	}
	return &o, nil
}

func (r *OTPRepo) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, email)
	return nil
}
