package friend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/infrastructure/memory"
	"github.com/hive-api/internal/pkg/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishFriendEvent(ctx context.Context, ev domain.FriendEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type fixture struct {
	svc   Service
	store *memory.UserRepo
	pub   *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewUserRepo()
	pub := &mockPublisher{}
	pub.On("PublishFriendEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	return &fixture{
		svc:   NewService(ServiceDeps{UserRepo: store, GraphRepo: store, Publisher: pub}),
		store: store,
		pub:   pub,
	}
}

func (f *fixture) addUser(t *testing.T, username string, status domain.PresenceStatus) string {
	t.Helper()
	uid := id.New()
	require.NoError(t, f.store.Create(context.Background(), &domain.User{
		UserID:        uid,
		Username:      username,
		UsernameLower: username,
		Email:         username + "@gmail.com",
		Status:        status,
	}))
	return uid
}

func (f *fixture) user(t *testing.T, uid string) *domain.User {
	t.Helper()
	u, err := f.store.Get(context.Background(), uid)
	require.NoError(t, err)
	return u
}

func assertCode(t *testing.T, err error, kind error, code string) {
	t.Helper()
	assert.ErrorIs(t, err, kind)
	assert.True(t, domain.HasCode(err, code), "want %s, got %v", code, err)
}

// --- SendRequest ---

func TestSendRequest_CreatesPendingEntryOnReceiverOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)

	require.NoError(t, f.svc.SendRequest(ctx, alice, bob))

	fr, ok := f.user(t, bob).FriendRequests[alice]
	require.True(t, ok)
	assert.Equal(t, domain.RequestPending, fr.Status)
	assert.False(t, f.user(t, alice).HasRequestFrom(bob))
	f.pub.AssertCalled(t, "PublishFriendEvent", mock.Anything, mock.MatchedBy(func(ev domain.FriendEvent) bool {
		return ev.Type == domain.EventRequestSent && ev.ActorID == alice && ev.SubjectID == bob
	}))
}

func TestSendRequest_Self(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	assertCode(t, f.svc.SendRequest(context.Background(), alice, alice), domain.ErrBadRequest, domain.CodeInvalidInput)
}

func TestSendRequest_MalformedIDs(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	assertCode(t, f.svc.SendRequest(context.Background(), alice, "bob"), domain.ErrBadRequest, domain.CodeInvalidInput)
	assertCode(t, f.svc.SendRequest(context.Background(), "", alice), domain.ErrBadRequest, domain.CodeInvalidInput)
}

func TestSendRequest_UnknownReceiver(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	assertCode(t, f.svc.SendRequest(context.Background(), alice, id.New()), domain.ErrNotFound, domain.CodeUserNotFound)
}

func TestSendRequest_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)

	require.NoError(t, f.svc.SendRequest(ctx, alice, bob))
	assertCode(t, f.svc.SendRequest(ctx, alice, bob), domain.ErrConflict, domain.CodeRequestAlreadySent)
	assert.Len(t, f.user(t, bob).FriendRequests, 1)
}

func TestSendRequest_AlreadyFriends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	require.NoError(t, f.svc.SendRequest(ctx, alice, bob))
	require.NoError(t, f.svc.AcceptRequest(ctx, bob, alice))

	assertCode(t, f.svc.SendRequest(ctx, alice, bob), domain.ErrConflict, domain.CodeAlreadyFriends)
}

func TestSendRequest_Blocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)

	require.NoError(t, f.svc.BlockUser(ctx, bob, alice))
	assertCode(t, f.svc.SendRequest(ctx, alice, bob), domain.ErrForbidden, domain.CodeUserBlocked)
	// the blocker cannot send either
	assertCode(t, f.svc.SendRequest(ctx, bob, alice), domain.ErrForbidden, domain.CodeUserBlocked)
	assert.Empty(t, f.user(t, bob).FriendRequests)
}

// racingStore lets another request land between the service's read and its
// conditional write.
type racingStore struct {
	*memory.UserRepo
	race func()
}

func (r *racingStore) AddFriendRequest(ctx context.Context, receiverID string, req domain.FriendRequest) error {
	r.race()
	return r.UserRepo.AddFriendRequest(ctx, receiverID, req)
}

func TestSendRequest_LostRaceReportsPending(t *testing.T) {
	store := memory.NewUserRepo()
	ctx := context.Background()
	mk := func(name string) string {
		uid := id.New()
		require.NoError(t, store.Create(ctx, &domain.User{UserID: uid, Username: name, UsernameLower: name, Email: name + "@gmail.com"}))
		return uid
	}
	alice, bob := mk("alice"), mk("bob")
	rs := &racingStore{UserRepo: store}
	rs.race = func() {
		_ = store.AddFriendRequest(ctx, bob, domain.FriendRequest{Sender: alice, Status: domain.RequestPending, RequestedAt: time.Now()})
	}
	svc := NewService(ServiceDeps{UserRepo: store, GraphRepo: rs})

	assertCode(t, svc.SendRequest(ctx, alice, bob), domain.ErrConflict, domain.CodeRequestAlreadySent)
}

// --- AcceptRequest ---

func TestAcceptRequest_CreatesSymmetricEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	require.NoError(t, f.svc.SendRequest(ctx, alice, bob))

	require.NoError(t, f.svc.AcceptRequest(ctx, bob, alice))

	b, a := f.user(t, bob), f.user(t, alice)
	assert.True(t, b.IsFriendOf(alice))
	assert.True(t, a.IsFriendOf(bob))
	assert.False(t, b.HasRequestFrom(alice))
	f.pub.AssertCalled(t, "PublishFriendEvent", mock.Anything, mock.MatchedBy(func(ev domain.FriendEvent) bool {
		return ev.Type == domain.EventRequestAccepted && ev.ActorID == bob && ev.SubjectID == alice
	}))
}

func TestAcceptRequest_NoPendingEntry(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)

	assertCode(t, f.svc.AcceptRequest(context.Background(), bob, alice), domain.ErrNotFound, domain.CodeRequestNotFound)
	assert.Empty(t, f.user(t, bob).Friends)
	assert.Empty(t, f.user(t, alice).Friends)
}

func TestAcceptRequest_Self(t *testing.T) {
	f := newFixture(t)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	assertCode(t, f.svc.AcceptRequest(context.Background(), bob, bob), domain.ErrBadRequest, domain.CodeInvalidInput)
}

func TestAcceptRequest_PublishFailureIsNotFatal(t *testing.T) {
	store := memory.NewUserRepo()
	pub := &mockPublisher{}
	pub.On("PublishFriendEvent", mock.Anything, mock.Anything).Return(errors.New("sns down"))
	f := &fixture{svc: NewService(ServiceDeps{UserRepo: store, GraphRepo: store, Publisher: pub}), store: store, pub: pub}
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)

	require.NoError(t, f.svc.SendRequest(ctx, alice, bob))
	require.NoError(t, f.svc.AcceptRequest(ctx, bob, alice))
	assert.True(t, f.user(t, alice).IsFriendOf(bob))
}

// --- RejectRequest ---

func TestRejectRequest_RemovesEntryWithoutEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	require.NoError(t, f.svc.SendRequest(ctx, alice, bob))

	require.NoError(t, f.svc.RejectRequest(ctx, bob, alice))

	b := f.user(t, bob)
	assert.False(t, b.HasRequestFrom(alice))
	assert.False(t, b.IsFriendOf(alice))
	assert.False(t, f.user(t, alice).IsFriendOf(bob))

	// the pair is unrelated again, so alice may ask once more
	assert.NoError(t, f.svc.SendRequest(ctx, alice, bob))
}

func TestRejectRequest_Missing(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	assertCode(t, f.svc.RejectRequest(context.Background(), bob, alice), domain.ErrNotFound, domain.CodeRequestNotFound)
}

// --- RemoveFriend ---

func TestRemoveFriend_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	require.NoError(t, f.svc.SendRequest(ctx, alice, bob))
	require.NoError(t, f.svc.AcceptRequest(ctx, bob, alice))

	require.NoError(t, f.svc.RemoveFriend(ctx, alice, bob))
	first := [2][]string{f.user(t, alice).Friends, f.user(t, bob).Friends}
	require.NoError(t, f.svc.RemoveFriend(ctx, alice, bob))
	second := [2][]string{f.user(t, alice).Friends, f.user(t, bob).Friends}

	assert.Equal(t, first, second)
	assert.Empty(t, second[0])
	assert.Empty(t, second[1])
}

func TestRemoveFriend_UnknownUser(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	assertCode(t, f.svc.RemoveFriend(context.Background(), alice, id.New()), domain.ErrNotFound, domain.CodeUserNotFound)
}

// --- queries ---

func TestPendingRequests_OrderedAndJoined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.addUser(t, "bob", domain.StatusOnline)
	carol := f.addUser(t, "carol", domain.StatusOnline)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	base := time.Now().UTC()

	require.NoError(t, f.store.AddFriendRequest(ctx, bob, domain.FriendRequest{Sender: carol, Status: domain.RequestPending, RequestedAt: base.Add(time.Minute)}))
	require.NoError(t, f.store.AddFriendRequest(ctx, bob, domain.FriendRequest{Sender: alice, Status: domain.RequestPending, RequestedAt: base}))
	require.NoError(t, f.store.AddFriendRequest(ctx, bob, domain.FriendRequest{Sender: id.New(), Status: domain.RequestPending, RequestedAt: base.Add(-time.Minute)}))

	got, err := f.svc.PendingRequests(ctx, bob)
	require.NoError(t, err)
	require.Len(t, got, 2, "entries from deleted senders are skipped")
	assert.Equal(t, "alice", got[0].Sender.Username)
	assert.Equal(t, "carol", got[1].Sender.Username)
}

func TestPendingRequests_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	got, err := f.svc.PendingRequests(context.Background(), bob)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func befriend(t *testing.T, f *fixture, a, b string) {
	t.Helper()
	require.NoError(t, f.svc.SendRequest(context.Background(), a, b))
	require.NoError(t, f.svc.AcceptRequest(context.Background(), b, a))
}

func TestOnlineAndAllFriends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)
	carol := f.addUser(t, "carol", domain.StatusOffline)
	befriend(t, f, bob, alice)
	befriend(t, f, carol, alice)

	all, err := f.svc.AllFriends(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	online, err := f.svc.OnlineFriends(ctx, alice)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, bob, online[0].UserID)
}

func TestFriendQueries_UnknownCaller(t *testing.T) {
	f := newFixture(t)
	ghost := id.New()
	ctx := context.Background()

	_, err := f.svc.AllFriends(ctx, ghost)
	assertCode(t, err, domain.ErrNotFound, domain.CodeUserNotFound)
	_, err = f.svc.OnlineFriends(ctx, ghost)
	assertCode(t, err, domain.ErrNotFound, domain.CodeUserNotFound)
	_, err = f.svc.BlockedUsers(ctx, ghost)
	assertCode(t, err, domain.ErrNotFound, domain.CodeUserNotFound)
	_, err = f.svc.PendingRequests(ctx, ghost)
	assertCode(t, err, domain.ErrNotFound, domain.CodeUserNotFound)
}

// --- block / unblock ---

func TestBlockUser_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice", domain.StatusOnline)
	bob := f.addUser(t, "bob", domain.StatusOnline)

	require.NoError(t, f.svc.BlockUser(ctx, alice, bob))
	require.NoError(t, f.svc.BlockUser(ctx, alice, bob))
	assert.Equal(t, []string{bob}, f.user(t, alice).Blocked)
	assert.Empty(t, f.user(t, bob).Blocked, "blocking is not symmetric")

	blocked, err := f.svc.BlockedUsers(ctx, alice)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "bob", blocked[0].Username)

	require.NoError(t, f.svc.UnblockUser(ctx, alice, bob))
	require.NoError(t, f.svc.UnblockUser(ctx, alice, bob))
	assert.Empty(t, f.user(t, alice).Blocked)
}

func TestBlockUser_SelfAndUnknown(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice", domain.StatusOnline)
	assertCode(t, f.svc.BlockUser(context.Background(), alice, alice), domain.ErrBadRequest, domain.CodeInvalidInput)
	assertCode(t, f.svc.BlockUser(context.Background(), alice, id.New()), domain.ErrNotFound, domain.CodeUserNotFound)
}

// --- search ---

func TestSearchByUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice", domain.StatusOnline)
	f.addUser(t, "malice", domain.StatusOnline)
	f.addUser(t, "bob", domain.StatusOnline)

	got, err := f.svc.SearchByUsername(ctx, "  ALI ")
	require.NoError(t, err)
	names := make([]string, len(got))
	for i, u := range got {
		names[i] = u.Username
	}
	assert.ElementsMatch(t, []string{"alice", "malice"}, names)

	_, err = f.svc.SearchByUsername(ctx, "   ")
	assertCode(t, err, domain.ErrBadRequest, domain.CodeInvalidInput)
}

func TestSearchByUsername_Capped(t *testing.T) {
	f := newFixture(t)
	for i := range MaxSearchResults + 5 {
		f.addUser(t, fmt.Sprintf("user%03d", i), domain.StatusOnline)
	}
	got, err := f.svc.SearchByUsername(context.Background(), "user")
	require.NoError(t, err)
	assert.Len(t, got, MaxSearchResults)
}
