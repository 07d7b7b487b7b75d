package mongo

const (
	fieldID             = "_id"
	fieldUserID         = "user_id"
	fieldUsernameLower  = "username_lower"
	fieldEmail          = "email"
	fieldFriends        = "friends"
	fieldFriendRequests = "friend_requests"
	fieldBlocked        = "blocked"
	fieldStatus         = "status"
	fieldEnable         = "enable"
	fieldUpdatedAt      = "updated_at"
	fieldExpiresAt      = "expires_at"
)

// requestPath addresses the request entry from senderID inside friend_requests.
func requestPath(senderID string) string {
	return fieldFriendRequests + "." + senderID
}
