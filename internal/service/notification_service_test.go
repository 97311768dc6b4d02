package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facezhuk/internal/domain"
	"github.com/spec-kit/facezhuk/internal/events"
	"github.com/spec-kit/facezhuk/internal/repository"
	"github.com/spec-kit/facezhuk/internal/repository/memory"
)

type notificationFixture struct {
	svc    *NotificationService
	store  *memory.Notifications
	pushes *recordingBroadcaster
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	users := memory.NewUsers()
	for _, name := range []string{"alice", "bob"} {
		require.NoError(t, users.Create(context.Background(), &domain.User{Username: name, Email: name + "@example.com"}))
	}

	f := &notificationFixture{store: memory.NewNotifications(), pushes: &recordingBroadcaster{}}
	f.svc = NewNotificationService(events.NewInMemoryDispatcher(), f.store, users, f.pushes, nil)
	f.svc.RegisterHandlers()
	return f
}

var (
	alice = domain.Identity{Username: "alice", Email: "alice@example.com"}
	bob   = domain.Identity{Username: "bob", Email: "bob@example.com"}
)

func TestNotifyPersistsAndPushes(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Notify(ctx, bob, "alice", domain.NotificationFriendshipRequest))
	require.NoError(t, f.svc.Notify(ctx, bob, "alice", domain.NotificationMessageReceived))

	assert.Equal(t, []string{
		"New Friendship Request from bob",
		"New Message Received from bob",
	}, f.pushes.messages("alice"))
	assert.Empty(t, f.pushes.messages("bob"))

	list, err := f.svc.List(ctx, alice, repository.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.NotificationData{Event: domain.NotificationMessageReceived, FromUser: "bob"}, list[0].Data)
	assert.False(t, list[0].Read)
}

func TestNotifyRejections(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Notify(ctx, bob, "alice", "poke"), ErrUnknownNotification)
	assert.ErrorIs(t, f.svc.Notify(ctx, bob, "bob", domain.NotificationMessageReceived), ErrSelfNotification)
	assert.ErrorIs(t, f.svc.Notify(ctx, bob, "carol", domain.NotificationMessageReceived), domain.ErrUserNotFound)
	assert.Empty(t, f.pushes.messages("alice"))
}

func TestMarkAsAndFilter(t *testing.T) {
	f := newNotificationFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.Notify(ctx, bob, "alice", domain.NotificationMessageReceived))
	}
	require.NoError(t, f.svc.Notify(ctx, alice, "bob", domain.NotificationMessageReceived))

	all, err := f.svc.List(ctx, alice, repository.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	bobs, err := f.svc.List(ctx, bob, repository.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, bobs, 1)

	n, err := f.svc.MarkAs(ctx, alice, []int64{all[0].ID, all[1].ID, bobs[0].ID}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "other users' notifications are untouched")

	unread := false
	list, err := f.svc.List(ctx, alice, repository.NotificationFilter{Read: &unread})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, all[2].ID, list[0].ID)

	n, err = f.svc.MarkAs(ctx, alice, nil, true)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := f.svc.List(ctx, alice, repository.NotificationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)
}

func TestPushMessage(t *testing.T) {
	assert.Equal(t, "New Friendship Request from bob", PushMessage(domain.NotificationFriendshipRequest, "bob"))
	assert.Equal(t, "New Message Received from bob", PushMessage(domain.NotificationMessageReceived, "bob"))
}
