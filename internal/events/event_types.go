package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/facezhuk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventFriendshipRequested EventType = "friendship_requested"
	EventMessageReceived     EventType = "message_received"
)

// EventTypeFor maps a notification kind to the event that produces it.
func EventTypeFor(kind domain.NotificationEvent) (EventType, bool) {
	switch kind {
	case domain.NotificationFriendshipRequest:
		return EventFriendshipRequested, true
	case domain.NotificationMessageReceived:
		return EventMessageReceived, true
	}
	return "", false
}

// Event is something that happened to Recipient because of Actor.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Actor     string    `json:"actor"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, actor, recipient string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Recipient: recipient,
		Timestamp: time.Now().UTC(),
	}
}
