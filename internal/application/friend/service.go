package friend

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/pkg/id"
)

// MaxSearchResults caps SearchByUsername.
const MaxSearchResults = 50

type Service interface {
	SearchByUsername(ctx context.Context, query string) ([]domain.User, error)
	SendRequest(ctx context.Context, senderID, receiverID string) error
	AcceptRequest(ctx context.Context, userID, senderID string) error
	RejectRequest(ctx context.Context, userID, senderID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	PendingRequests(ctx context.Context, userID string) ([]domain.PendingRequest, error)
	OnlineFriends(ctx context.Context, userID string) ([]domain.User, error)
	AllFriends(ctx context.Context, userID string) ([]domain.User, error)
	BlockUser(ctx context.Context, userID, blockedID string) error
	UnblockUser(ctx context.Context, userID, blockedID string) error
	BlockedUsers(ctx context.Context, userID string) ([]domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetMany(ctx context.Context, ids []string) ([]domain.User, error)
	SearchByUsername(ctx context.Context, query string, limit int) ([]domain.User, error)
}

// graphStore applies relationship transitions. Every method is a single
// atomic store operation; two-document edges are transactional.
type graphStore interface {
	AddFriendRequest(ctx context.Context, receiverID string, req domain.FriendRequest) error
	AcceptFriendRequest(ctx context.Context, userID, senderID string) error
	RemoveFriendRequest(ctx context.Context, userID, senderID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	Block(ctx context.Context, userID, blockedID string) error
	Unblock(ctx context.Context, userID, blockedID string) error
}

type eventPublisher interface {
	PublishFriendEvent(ctx context.Context, ev domain.FriendEvent) error
}

type service struct {
	users     userStore
	graph     graphStore
	publisher eventPublisher
	now       func() time.Time
}

type ServiceDeps struct {
	UserRepo  userStore
	GraphRepo graphStore
	// Publisher is optional; events are dropped when nil.
	Publisher eventPublisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:     deps.UserRepo,
		graph:     deps.GraphRepo,
		publisher: deps.Publisher,
		now:       time.Now,
	}
}

func (s *service) SearchByUsername(ctx context.Context, query string) ([]domain.User, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, invalidInput(domain.FieldUsername, "Please provide a username to search for.")
	}
	return s.users.SearchByUsername(ctx, q, MaxSearchResults)
}

func (s *service) SendRequest(ctx context.Context, senderID, receiverID string) error {
	if err := checkPair(senderID, receiverID, "You cannot send a friend request to yourself."); err != nil {
		return err
	}
	receiver, err := s.getUser(ctx, receiverID)
	if err != nil {
		return err
	}
	sender, err := s.getUser(ctx, senderID)
	if err != nil {
		return err
	}
	if receiver.HasBlocked(senderID) || sender.HasBlocked(receiverID) {
		return domain.NewFieldError(domain.ErrForbidden, domain.FieldUser, domain.CodeUserBlocked, "You cannot send a friend request to this user.")
	}
	switch domain.RelationshipWith(receiver, senderID) {
	case domain.RelationshipFriends:
		return alreadyFriends()
	case domain.RelationshipRequestPending:
		return requestPending()
	}

	req := domain.FriendRequest{Sender: senderID, Status: domain.RequestPending, RequestedAt: s.now().UTC()}
	if err := s.graph.AddFriendRequest(ctx, receiverID, req); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.resolveSendConflict(ctx, senderID, receiverID)
		}
		return err
	}
	s.publish(ctx, domain.EventRequestSent, senderID, receiverID)
	return nil
}

// resolveSendConflict re-reads the receiver after a lost race so the caller
// learns which state won.
func (s *service) resolveSendConflict(ctx context.Context, senderID, receiverID string) error {
	receiver, err := s.getUser(ctx, receiverID)
	if err != nil {
		return err
	}
	if receiver.IsFriendOf(senderID) {
		return alreadyFriends()
	}
	return requestPending()
}

func (s *service) AcceptRequest(ctx context.Context, userID, senderID string) error {
	if err := checkPair(userID, senderID, "You cannot accept a request from yourself."); err != nil {
		return err
	}
	if err := s.graph.AcceptFriendRequest(ctx, userID, senderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return requestNotFound()
		}
		return err
	}
	s.publish(ctx, domain.EventRequestAccepted, userID, senderID)
	return nil
}

func (s *service) RejectRequest(ctx context.Context, userID, senderID string) error {
	if err := checkPair(userID, senderID, "You cannot reject a request from yourself."); err != nil {
		return err
	}
	if err := s.graph.RemoveFriendRequest(ctx, userID, senderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return requestNotFound()
		}
		return err
	}
	return nil
}

func (s *service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if err := checkPair(userID, friendID, "You cannot remove yourself."); err != nil {
		return err
	}
	if err := s.graph.RemoveFriend(ctx, userID, friendID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return userNotFound()
		}
		return err
	}
	return nil
}

// PendingRequests lists pending entries oldest first, joined with their
// senders. Entries whose sender no longer exists are skipped.
func (s *service) PendingRequests(ctx context.Context, userID string) ([]domain.PendingRequest, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending := u.PendingRequests()
	if len(pending) == 0 {
		return []domain.PendingRequest{}, nil
	}
	ids := make([]string, len(pending))
	for i, fr := range pending {
		ids[i] = fr.Sender
	}
	senders, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PendingRequest, 0, len(pending))
	for i := range pending {
		if senders[i] == nil {
			continue
		}
		out = append(out, domain.PendingRequest{
			Sender:      senders[i],
			Status:      pending[i].Status,
			RequestedAt: pending[i].RequestedAt,
		})
	}
	return out, nil
}

func (s *service) OnlineFriends(ctx context.Context, userID string) ([]domain.User, error) {
	friends, err := s.AllFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	online := make([]domain.User, 0, len(friends))
	for _, f := range friends {
		if f.Status == domain.StatusOnline {
			online = append(online, f)
		}
	}
	return online, nil
}

func (s *service) AllFriends(ctx context.Context, userID string) ([]domain.User, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveExisting(ctx, u.Friends)
}

func (s *service) BlockUser(ctx context.Context, userID, blockedID string) error {
	if err := checkPair(userID, blockedID, "You cannot block yourself."); err != nil {
		return err
	}
	if _, err := s.getUser(ctx, blockedID); err != nil {
		return err
	}
	if err := s.graph.Block(ctx, userID, blockedID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return userNotFound()
		}
		return err
	}
	return nil
}

func (s *service) UnblockUser(ctx context.Context, userID, blockedID string) error {
	if err := checkPair(userID, blockedID, "You cannot unblock yourself."); err != nil {
		return err
	}
	if err := s.graph.Unblock(ctx, userID, blockedID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return userNotFound()
		}
		return err
	}
	return nil
}

func (s *service) BlockedUsers(ctx context.Context, userID string) ([]domain.User, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveExisting(ctx, u.Blocked)
}

func (s *service) getUser(ctx context.Context, userID string) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, invalidInput(domain.FieldUser, "Invalid user id.")
	}
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, userNotFound()
	}
	return u, err
}

// resolve loads ids and returns the users in the same order, with nil for
// ids that no longer exist.
func (s *service) resolve(ctx context.Context, ids []string) ([]*domain.User, error) {
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.User, len(users))
	for i := range users {
		byID[users[i].UserID] = &users[i]
	}
	out := make([]*domain.User, len(ids))
	for i, uid := range ids {
		out[i] = byID[uid]
	}
	return out, nil
}

// resolveExisting is resolve without the gaps.
func (s *service) resolveExisting(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	resolved, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(resolved))
	for _, u := range resolved {
		if u != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *service) publish(ctx context.Context, typ domain.FriendEventType, actorID, subjectID string) {
	if s.publisher == nil {
		return
	}
	ev := domain.FriendEvent{Type: typ, ActorID: actorID, SubjectID: subjectID, OccurredAt: s.now().UTC()}
	if err := s.publisher.PublishFriendEvent(ctx, ev); err != nil {
		slog.Warn("failed to publish friend event", "type", typ, "actor_id", actorID, "subject_id", subjectID, "err", err)
	}
}

// checkPair validates both ids and rejects self-reference.
func checkPair(a, b, selfMsg string) error {
	if !id.Valid(a) || !id.Valid(b) {
		return invalidInput(domain.FieldUser, "Invalid user id.")
	}
	if a == b {
		return invalidInput(domain.FieldUser, selfMsg)
	}
	return nil
}

func invalidInput(field, msg string) error {
	return domain.NewFieldError(domain.ErrBadRequest, field, domain.CodeInvalidInput, msg)
}

func userNotFound() error {
	return domain.NewFieldError(domain.ErrNotFound, domain.FieldUser, domain.CodeUserNotFound, "User not found.")
}

func alreadyFriends() error {
	return domain.NewFieldError(domain.ErrConflict, domain.FieldFriendRequest, domain.CodeAlreadyFriends, "You are already friends.")
}

func requestPending() error {
	return domain.NewFieldError(domain.ErrConflict, domain.FieldFriendRequest, domain.CodeRequestAlreadySent, "Friend request already sent.")
}

func requestNotFound() error {
	return domain.NewFieldError(domain.ErrNotFound, domain.FieldFriendRequest, domain.CodeRequestNotFound, "Friend request not found.")
}
