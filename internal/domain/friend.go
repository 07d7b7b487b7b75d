package domain

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest is one entry of a receiver's friend_requests map, keyed by Sender.
type FriendRequest struct {
	Sender      string        `json:"sender" dynamodbav:"sender" bson:"sender"`
	Status      RequestStatus `json:"status" dynamodbav:"status" bson:"status"`
	RequestedAt time.Time     `json:"requested_at" dynamodbav:"requested_at" bson:"requested_at"`
}

// Relationship is the state of an ordered (sender, receiver) pair as seen
// from the receiver's document.
type Relationship string

const (
	RelationshipNone           Relationship = "not_related"
	RelationshipFriends        Relationship = "already_friends"
	RelationshipRequestPending Relationship = "request_pending"
)

// RelationshipWith computes how senderID currently relates to receiver.
func RelationshipWith(receiver *User, senderID string) Relationship {
	if receiver.IsFriendOf(senderID) {
		return RelationshipFriends
	}
	if receiver.HasRequestFrom(senderID) {
		return RelationshipRequestPending
	}
	return RelationshipNone
}

// PendingRequest is a pending entry joined with its sender's record.
type PendingRequest struct {
	Sender      *User
	Status      RequestStatus
	RequestedAt time.Time
}

type FriendEventType string

const (
	EventRequestSent     FriendEventType = "friend_request.sent"
	EventRequestAccepted FriendEventType = "friend_request.accepted"
)

// FriendEvent is published after a relationship transition commits.
type FriendEvent struct {
	Type       FriendEventType `json:"type"`
	ActorID    string          `json:"actor_id"`
	SubjectID  string          `json:"subject_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type SendFriendRequestRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

type RespondFriendRequestRequest struct {
	SenderID string `json:"sender_id" validate:"required"`
}

type BlockRequest struct {
	FriendID string `json:"friend_id" validate:"required"`
}
