package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/facezhuk/internal/domain"
	"github.com/spec-kit/facezhuk/internal/events"
	"github.com/spec-kit/facezhuk/internal/repository"
)

// Notification failures.
var (
	ErrUnknownNotification = errors.New("unknown notification event")
	ErrSelfNotification    = errors.New("cannot notify yourself")
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// Broadcaster pushes a message to every live channel of a username.
type Broadcaster interface {
	Broadcast(ctx context.Context, username, message string) int
}

// NotificationService turns events into stored notifications and realtime pushes.
type NotificationService struct {
	dispatcher    events.Dispatcher
	notifications repository.NotificationRepository
	users         repository.UserRepository
	realtime      Broadcaster
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(
	dispatcher events.Dispatcher,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	realtime Broadcaster,
	logger *zap.Logger,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:    dispatcher,
		notifications: notifications,
		users:         users,
		realtime:      realtime,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventFriendshipRequested, n.handleFriendshipRequested)
	n.dispatcher.Subscribe(events.EventMessageReceived, n.handleMessageReceived)
}

// Notify publishes kind from the caller to recipient.
func (n *NotificationService) Notify(ctx context.Context, from domain.Identity, recipient string, kind domain.NotificationEvent) error {
	eventType, ok := events.EventTypeFor(kind)
	if !ok {
		return ErrUnknownNotification
	}
	if recipient == from.Username {
		return ErrSelfNotification
	}
	if _, err := n.users.GetByUsername(ctx, recipient); err != nil {
		return err
	}
	return n.dispatcher.Publish(ctx, events.NewEvent(eventType, from.Username, recipient))
}

func (n *NotificationService) handleFriendshipRequested(ctx context.Context, event events.Event) error {
	return n.deliver(ctx, event, domain.NotificationFriendshipRequest)
}

func (n *NotificationService) handleMessageReceived(ctx context.Context, event events.Event) error {
	return n.deliver(ctx, event, domain.NotificationMessageReceived)
}

// deliver stores the notification first, so a recipient who is offline still
// finds it later.
func (n *NotificationService) deliver(ctx context.Context, event events.Event, kind domain.NotificationEvent) error {
	notification := &domain.Notification{
		Username: event.Recipient,
		Data:     domain.NotificationData{Event: kind, FromUser: event.Actor},
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		n.logger.Error("store notification", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}

	delivered := 0
	if n.realtime != nil {
		delivered = n.realtime.Broadcast(ctx, event.Recipient, PushMessage(kind, event.Actor))
	}
	n.logger.Debug("notification delivered",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("recipient", event.Recipient),
		zap.Int("channels", delivered))
	return nil
}

// PushMessage is the realtime text for a notification.
func PushMessage(kind domain.NotificationEvent, from string) string {
	switch kind {
	case domain.NotificationFriendshipRequest:
		return fmt.Sprintf("New Friendship Request from %s", from)
	case domain.NotificationMessageReceived:
		return fmt.Sprintf("New Message Received from %s", from)
	}
	return fmt.Sprintf("New notification from %s", from)
}

// List returns the caller's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, who domain.Identity, filter repository.NotificationFilter) ([]domain.Notification, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultNotificationLimit
	}
	if filter.Limit > maxNotificationLimit {
		filter.Limit = maxNotificationLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return n.notifications.ListByUser(ctx, who.Username, filter)
}

// MarkAs flags the caller's notifications as read or unread; ids belonging to
// someone else are ignored.
func (n *NotificationService) MarkAs(ctx context.Context, who domain.Identity, ids []int64, read bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return n.notifications.MarkRead(ctx, who.Username, ids, read)
}
