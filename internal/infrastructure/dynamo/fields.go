package dynamo

// DynamoDB attribute names used in update and condition expressions.
const (
	fieldUserID         = "user_id"
	fieldUsernameLower  = "username_lower"
	fieldEmail          = "email"
	fieldFriends        = "friends"
	fieldFriendRequests = "friend_requests"
	fieldBlocked        = "blocked"
	fieldStatus         = "status"
	fieldUpdatedAt      = "updated_at"
	fieldSessionID      = "session_id"
	fieldEnable         = "enable"
	fieldExpiresAt      = "expires_at"
)

const (
	indexUsernameLower = "username_lower-index"
	indexEmail         = "email-index"
	indexSessionUser   = "user_id-index"
)
