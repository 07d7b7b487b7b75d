package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hive-api/internal/application/friend"
	"github.com/hive-api/internal/domain"
	"github.com/hive-api/internal/transport/http/middleware"
)

// FriendHandler exposes the friend engine. Every route acts on behalf of the
// authenticated caller.
type FriendHandler struct {
	svc friend.Service
}

func NewFriendHandler(svc friend.Service) *FriendHandler { return &FriendHandler{svc: svc} }

func (h *FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.SearchByUsername(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UsersEnvelope{Data: toPublicUsers(users)})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req domain.SendFriendRequestRequest
	if err := decode(r, &req, true); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.SendRequest(r.Context(), callerID, req.ReceiverID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "Friend request sent."})
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.AcceptRequest, "Friend request accepted.")
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.svc.RejectRequest, "Friend request rejected.")
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, senderID string) error, msg string) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req domain.RespondFriendRequestRequest
	if err := decode(r, &req, true); err != nil {
		httpError(w, err)
		return
	}
	if err := op(r.Context(), callerID, req.SenderID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveFriend(r.Context(), callerID, chi.URLParam(r, "friendId")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Friend removed."})
}

func (h *FriendHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	pending, err := h.svc.PendingRequests(r.Context(), callerID)
	if err != nil {
		httpError(w, err)
		return
	}
	views := make([]PendingRequestView, len(pending))
	for i, p := range pending {
		views[i] = PendingRequestView{Sender: toPublicUser(p.Sender), Status: p.Status, RequestedAt: p.RequestedAt}
	}
	writeJSON(w, http.StatusOK, PendingRequestsEnvelope{Data: views})
}

func (h *FriendHandler) OnlineFriends(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.OnlineFriends)
}

func (h *FriendHandler) AllFriends(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.AllFriends)
}

func (h *FriendHandler) BlockedUsers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.BlockedUsers)
}

func (h *FriendHandler) list(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID string) ([]domain.User, error)) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	users, err := op(r.Context(), callerID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UsersEnvelope{Data: toPublicUsers(users)})
}

func (h *FriendHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.block(w, r, h.svc.BlockUser, "User blocked.")
}

func (h *FriendHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.block(w, r, h.svc.UnblockUser, "User unblocked.")
}

func (h *FriendHandler) block(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, otherID string) error, msg string) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req domain.BlockRequest
	if err := decode(r, &req, true); err != nil {
		httpError(w, err)
		return
	}
	if err := op(r.Context(), callerID, req.FriendID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

// requireCaller writes a 401 and reports false when the request carries no claims.
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, notAuthenticated())
		return "", false
	}
	return claims.UserID, true
}
