package dto

import (
	"time"

	"github.com/spec-kit/facezhuk/internal/domain"
)

// NotifyRequest is the payload of POST /api/notifications.
type NotifyRequest struct {
	ToUsername string                   `json:"to_username"`
	Event      domain.NotificationEvent `json:"event"`
}

// MarkNotificationsRequest is the payload of PATCH /api/notifications.
type MarkNotificationsRequest struct {
	IDs []int64 `json:"ids"`
}

// NotificationResponse is the public view of a notification.
type NotificationResponse struct {
	ID        int64                   `json:"id"`
	Data      domain.NotificationData `json:"data"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationResponses renders a notification list.
func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Data:      n.Data,
			IsRead:    n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
