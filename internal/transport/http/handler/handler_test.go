package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hive-api/internal/application/session"
	"github.com/hive-api/internal/domain"
	jwtinfra "github.com/hive-api/internal/infrastructure/jwt"
	"github.com/hive-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) RegisterWithSession(ctx context.Context, req domain.RegisterRequest) (*domain.Session, string, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.String(1), args.Error(2)
	}
	return nil, "", args.Error(2)
}

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) EditUsername(ctx context.Context, userID, newUsername string) (*domain.User, error) {
	args := m.Called(ctx, userID, newUsername)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return m.Called(ctx, userID, oldPassword, newPassword).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req domain.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*session.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, sessionID, userID string) error {
	return m.Called(ctx, sessionID, userID).Error(0)
}

func (m *mockSessionSvc) Authenticate(ctx context.Context, token string) (*jwtinfra.Claims, error) {
	args := m.Called(ctx, token)
	if c, _ := args.Get(0).(*jwtinfra.Claims); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFriendSvc struct{ mock.Mock }

func (m *mockFriendSvc) users(args mock.Arguments) ([]domain.User, error) {
	if u, _ := args.Get(0).([]domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFriendSvc) SearchByUsername(ctx context.Context, query string) ([]domain.User, error) {
	return m.users(m.Called(ctx, query))
}

func (m *mockFriendSvc) SendRequest(ctx context.Context, senderID, receiverID string) error {
	return m.Called(ctx, senderID, receiverID).Error(0)
}

func (m *mockFriendSvc) AcceptRequest(ctx context.Context, userID, senderID string) error {
	return m.Called(ctx, userID, senderID).Error(0)
}

func (m *mockFriendSvc) RejectRequest(ctx context.Context, userID, senderID string) error {
	return m.Called(ctx, userID, senderID).Error(0)
}

func (m *mockFriendSvc) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return m.Called(ctx, userID, friendID).Error(0)
}

func (m *mockFriendSvc) PendingRequests(ctx context.Context, userID string) ([]domain.PendingRequest, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).([]domain.PendingRequest); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFriendSvc) OnlineFriends(ctx context.Context, userID string) ([]domain.User, error) {
	return m.users(m.Called(ctx, userID))
}

func (m *mockFriendSvc) AllFriends(ctx context.Context, userID string) ([]domain.User, error) {
	return m.users(m.Called(ctx, userID))
}

func (m *mockFriendSvc) BlockUser(ctx context.Context, userID, blockedID string) error {
	return m.Called(ctx, userID, blockedID).Error(0)
}

func (m *mockFriendSvc) UnblockUser(ctx context.Context, userID, blockedID string) error {
	return m.Called(ctx, userID, blockedID).Error(0)
}

func (m *mockFriendSvc) BlockedUsers(ctx context.Context, userID string) ([]domain.User, error) {
	return m.users(m.Called(ctx, userID))
}

// --- helpers ---

func jsonReq(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return httptest.NewRequest(method, target, &buf)
}

// asCaller attaches claims as the auth middleware would.
func asCaller(r *http.Request, userID string) *http.Request {
	claims := &jwtinfra.Claims{UserID: userID, SessionID: "sess-" + userID}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func tokenCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			return c
		}
	}
	return nil
}

var testCookie = CookieSettings{MaxAge: time.Hour, Secure: false}

// --- error mapping ---

func TestHTTPError_StatusMapping(t *testing.T) {
	cases := []struct {
		kind error
		want int
	}{
		{domain.ErrBadRequest, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.kind.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			httpError(rr, domain.NewFieldError(tc.kind, "f", "CODE", "msg"))
			assert.Equal(t, tc.want, rr.Code)
			env := decodeError(t, rr)
			assert.Equal(t, ErrorEnvelope{Error: "msg", ErrorField: "f", ErrorCode: "CODE"}, env)
		})
	}
}

func TestHTTPError_UnknownErrorIsHidden(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, fmt.Errorf("put user: %w", errors.New("connection reset")))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal Server Error.", decodeError(t, rr).Error)
}

// --- auth handler ---

func TestRegister_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockUserSvc{}, &mockSessionSvc{}, testCookie)
	r := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.CodeInvalidInput, decodeError(t, rr).ErrorCode)
}

func TestRegister_SetsCookie(t *testing.T) {
	users := &mockUserSvc{}
	req := domain.RegisterRequest{Username: "alice", Email: "alice@gmail.com", Password: "password1", ConfirmPassword: "password1"}
	users.On("RegisterWithSession", mock.Anything, req).
		Return(&domain.Session{SessionID: "s1", UserID: "u1", Enable: true}, "tok", nil)
	h := NewAuthHandler(users, &mockSessionSvc{}, testCookie)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/v1/auth/register", req))

	assert.Equal(t, http.StatusCreated, rr.Code)
	c := tokenCookie(rr)
	require.NotNil(t, c)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestRegister_Conflict(t *testing.T) {
	users := &mockUserSvc{}
	users.On("RegisterWithSession", mock.Anything, mock.Anything).
		Return(nil, "", domain.NewFieldError(domain.ErrConflict, domain.FieldUsername, domain.CodeUsernameTaken, "Username is taken."))
	h := NewAuthHandler(users, &mockSessionSvc{}, testCookie)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(t, http.MethodPost, "/v1/auth/register", domain.RegisterRequest{Username: "alice"}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	env := decodeError(t, rr)
	assert.Equal(t, domain.CodeUsernameTaken, env.ErrorCode)
	assert.Equal(t, domain.FieldUsername, env.ErrorField)
	assert.Nil(t, tokenCookie(rr))
}

func TestLogin_WrongPassword(t *testing.T) {
	sessions := &mockSessionSvc{}
	sessions.On("Login", mock.Anything, mock.Anything).
		Return(nil, domain.NewFieldError(domain.ErrUnauthorized, domain.FieldPassword, domain.CodePasswordIncorrect, "Password is incorrect."))
	h := NewAuthHandler(&mockUserSvc{}, sessions, testCookie)

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(t, http.MethodPost, "/v1/auth/login", domain.LoginRequest{Email: "a@gmail.com", Password: "nope"}))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, domain.CodePasswordIncorrect, decodeError(t, rr).ErrorCode)
}

func TestLogout_ClearsCookie(t *testing.T) {
	sessions := &mockSessionSvc{}
	sessions.On("Logout", mock.Anything, "sess-u1", "u1").Return(nil)
	h := NewAuthHandler(&mockUserSvc{}, sessions, testCookie)

	rr := httptest.NewRecorder()
	h.Logout(rr, asCaller(httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil), "u1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	c := tokenCookie(rr)
	require.NotNil(t, c)
	assert.Negative(t, c.MaxAge)
	sessions.AssertExpectations(t)
}

func TestIsAuthenticated_RevokedClearsCookie(t *testing.T) {
	sessions := &mockSessionSvc{}
	sessions.On("Authenticate", mock.Anything, "tok").
		Return(nil, domain.NewFieldError(domain.ErrUnauthorized, domain.FieldToken, domain.CodeSessionRevoked, "Session is no longer active."))
	h := NewAuthHandler(&mockUserSvc{}, sessions, testCookie)

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/is-authenticated", nil)
	r.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: "tok"})
	rr := httptest.NewRecorder()
	h.IsAuthenticated(rr, r)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, domain.CodeSessionRevoked, decodeError(t, rr).ErrorCode)
	require.NotNil(t, tokenCookie(rr))
}

func TestIsAuthenticated_StoreFailureKeepsCookie(t *testing.T) {
	sessions := &mockSessionSvc{}
	sessions.On("Authenticate", mock.Anything, "tok").Return(nil, errors.New("dynamo timeout"))
	h := NewAuthHandler(&mockUserSvc{}, sessions, testCookie)

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/is-authenticated", nil)
	r.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: "tok"})
	rr := httptest.NewRecorder()
	h.IsAuthenticated(rr, r)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Nil(t, tokenCookie(rr))
}

func TestUserDetails_OtherUserGetsPublicView(t *testing.T) {
	users := &mockUserSvc{}
	users.On("Get", mock.Anything, "u2").
		Return(&domain.User{UserID: "u2", Username: "bob", Email: "bob@gmail.com", Status: domain.StatusOnline}, nil)
	h := NewAuthHandler(users, &mockSessionSvc{}, testCookie)

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/v1/auth/user-details/u2", nil), "id", "u2")
	rr := httptest.NewRecorder()
	h.UserDetails(rr, asCaller(r, "u1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "bob", body["username"])
	assert.NotContains(t, body, "email")
}

func TestDetails_WithoutClaims(t *testing.T) {
	h := NewAuthHandler(&mockUserSvc{}, &mockSessionSvc{}, testCookie)
	rr := httptest.NewRecorder()
	h.Details(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/details", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// --- friend handler ---

func TestSendFriendRequest_MissingReceiver(t *testing.T) {
	h := NewFriendHandler(&mockFriendSvc{})
	rr := httptest.NewRecorder()
	h.SendRequest(rr, asCaller(jsonReq(t, http.MethodPost, "/v1/friends/request", map[string]string{}), "u1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.CodeInvalidInput, decodeError(t, rr).ErrorCode)
}

func TestSendFriendRequest_UsesCaller(t *testing.T) {
	svc := &mockFriendSvc{}
	svc.On("SendRequest", mock.Anything, "u1", "u2").Return(nil)
	h := NewFriendHandler(svc)

	rr := httptest.NewRecorder()
	h.SendRequest(rr, asCaller(jsonReq(t, http.MethodPost, "/v1/friends/request", domain.SendFriendRequestRequest{ReceiverID: "u2"}), "u1"))

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestSendFriendRequest_Blocked(t *testing.T) {
	svc := &mockFriendSvc{}
	svc.On("SendRequest", mock.Anything, "u1", "u2").
		Return(domain.NewFieldError(domain.ErrForbidden, domain.FieldUser, domain.CodeUserBlocked, "You cannot send a friend request to this user."))
	h := NewFriendHandler(svc)

	rr := httptest.NewRecorder()
	h.SendRequest(rr, asCaller(jsonReq(t, http.MethodPost, "/v1/friends/request", domain.SendFriendRequestRequest{ReceiverID: "u2"}), "u1"))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, domain.CodeUserBlocked, decodeError(t, rr).ErrorCode)
}

func TestAcceptRequest_NotFound(t *testing.T) {
	svc := &mockFriendSvc{}
	svc.On("AcceptRequest", mock.Anything, "u2", "u1").
		Return(domain.NewFieldError(domain.ErrNotFound, domain.FieldFriendRequest, domain.CodeRequestNotFound, "Friend request not found."))
	h := NewFriendHandler(svc)

	rr := httptest.NewRecorder()
	h.AcceptRequest(rr, asCaller(jsonReq(t, http.MethodPost, "/v1/friends/accept-request", domain.RespondFriendRequestRequest{SenderID: "u1"}), "u2"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, domain.CodeRequestNotFound, decodeError(t, rr).ErrorCode)
}

func TestPendingRequests_View(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &mockFriendSvc{}
	svc.On("PendingRequests", mock.Anything, "u2").Return([]domain.PendingRequest{{
		Sender:      &domain.User{UserID: "u1", Username: "alice", Email: "alice@gmail.com", Status: domain.StatusOnline},
		Status:      domain.RequestPending,
		RequestedAt: at,
	}}, nil)
	h := NewFriendHandler(svc)

	rr := httptest.NewRecorder()
	h.PendingRequests(rr, asCaller(httptest.NewRequest(http.MethodGet, "/v1/friends/pending-requests", nil), "u2"))

	require.Equal(t, http.StatusOK, rr.Code)
	var env PendingRequestsEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, PublicUser{ID: "u1", Username: "alice", Status: domain.StatusOnline}, env.Data[0].Sender)
	assert.True(t, at.Equal(env.Data[0].RequestedAt))
}

func TestAllFriends_EmptyListIsArray(t *testing.T) {
	svc := &mockFriendSvc{}
	svc.On("AllFriends", mock.Anything, "u1").Return([]domain.User{}, nil)
	h := NewFriendHandler(svc)

	rr := httptest.NewRecorder()
	h.AllFriends(rr, asCaller(httptest.NewRequest(http.MethodGet, "/v1/friends/all", nil), "u1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[]}`, rr.Body.String())
}

func TestRemoveFriend_ReadsPathParam(t *testing.T) {
	svc := &mockFriendSvc{}
	svc.On("RemoveFriend", mock.Anything, "u1", "u2").Return(nil)
	h := NewFriendHandler(svc)

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/v1/friends/remove-friend/u2", nil), "friendId", "u2")
	rr := httptest.NewRecorder()
	h.RemoveFriend(rr, asCaller(r, "u1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- profile handler ---

func TestChangePassword_ClearsCookie(t *testing.T) {
	users := &mockUserSvc{}
	users.On("ChangePassword", mock.Anything, "u1", "oldpassword", "newpassword").Return(nil)
	h := NewProfileHandler(users, false)

	rr := httptest.NewRecorder()
	h.ChangePassword(rr, asCaller(jsonReq(t, http.MethodPut, "/v1/profile/change-password",
		domain.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"}), "u1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, tokenCookie(rr))
	assert.Negative(t, tokenCookie(rr).MaxAge)
}

// --- health ---

func TestPing(t *testing.T) {
	h := NewHealthHandler()
	rr := httptest.NewRecorder()
	h.Ping(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil), "action", "ping"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Ping(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/nope", nil), "action", "nope"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
