package domain

import "time"

type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id" bson:"_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id" bson:"user_id"`
	Enable    bool      `json:"enable" dynamodbav:"enable" bson:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at" bson:"updated_at"`
	User      *User     `json:"user,omitempty" dynamodbav:"-" bson:"-"`
}
