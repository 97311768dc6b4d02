package domain

import "time"

// NotificationEvent names what happened to the recipient.
type NotificationEvent string

const (
	NotificationFriendshipRequest NotificationEvent = "friendship_request"
	NotificationMessageReceived   NotificationEvent = "message_received"
)

// Valid reports whether the event is one the service knows how to deliver.
func (e NotificationEvent) Valid() bool {
	switch e {
	case NotificationFriendshipRequest, NotificationMessageReceived:
		return true
	}
	return false
}

// NotificationData is the JSON payload stored with a notification.
type NotificationData struct {
	Event    NotificationEvent `json:"event"`
	FromUser string            `json:"from_user"`
}

// Notification is a persisted notice addressed to a username.
type Notification struct {
	ID        int64
	Username  string
	Data      NotificationData
	Read      bool
	CreatedAt time.Time
}
