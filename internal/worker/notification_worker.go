package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/facezhuk/internal/events"
	"github.com/spec-kit/facezhuk/internal/service"
)

// ErrQueueFull is returned by Publish when the backlog is at capacity.
var ErrQueueFull = errors.New("notification queue is full")

const defaultQueueSize = 256

// NotificationWorker decouples publishers from notification delivery: Publish
// only enqueues, and Run hands each event to the wrapped dispatcher.
type NotificationWorker struct {
	inner  events.Dispatcher
	queue  chan queued
	logger *zap.Logger
}

type queued struct {
	ctx   context.Context
	event events.Event
}

// NewNotificationWorker wraps inner with a bounded queue.
func NewNotificationWorker(inner events.Dispatcher, size int, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		inner:  inner,
		queue:  make(chan queued, size),
		logger: logger,
	}
}

// Publish implements events.Dispatcher without waiting for handlers.
func (w *NotificationWorker) Publish(ctx context.Context, event events.Event) error {
	select {
	case w.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
		return ErrQueueFull
	}
}

// Subscribe implements events.Dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Run delivers queued events until ctx is cancelled, then drains what is left.
func (w *NotificationWorker) Run(ctx context.Context) {
	for {
		select {
		case item := <-w.queue:
			w.dispatch(item)
		case <-ctx.Done():
			for {
				select {
				case item := <-w.queue:
					w.dispatch(item)
				default:
					return
				}
			}
		}
	}
}

func (w *NotificationWorker) dispatch(item queued) {
	if err := w.inner.Publish(item.ctx, item.event); err != nil {
		w.logger.Error("notification handler failed",
			zap.String("event_id", item.event.ID), zap.Error(err))
	}
}

// StartNotificationWorker registers notification handlers and starts delivery.
// The returned channel closes once the queue is drained after ctx is cancelled.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, w *NotificationWorker) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil || w == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}
